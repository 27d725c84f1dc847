package comm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ControlRequest is the setup of a control-IN transfer.
type ControlRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
}

// StreamControlRequest polls a frame when the bulk stream isn't enabled.
var StreamControlRequest = ControlRequest{
	RequestType: 0xa0,
	Request:     0x01,
	Value:       0x0002,
	Index:       0x0000,
}

// Transport is the device I/O capability used by Link.
// ReadPacket returns an empty buffer on timeout and ErrStreamNotReady when
// the bulk stream isn't enabled yet.
type Transport interface {
	MaxPacketSize() int
	ReadPacket(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error)
	ControlRead(ctx context.Context, req ControlRequest, maxLen int, timeout time.Duration) ([]byte, error)
	WritePacket(ctx context.Context, pkt []byte, timeout time.Duration) error
}

// UpdateNotifier is called when a frame updated a sensor.
type UpdateNotifier interface {
	SensorUpdated(context.Context, *Update)
}

// SensorUpdatedFunc is func type of UpdateNotifier.
type SensorUpdatedFunc func(context.Context, *Update)

// SensorUpdated implements UpdateNotifier.
func (f SensorUpdatedFunc) SensorUpdated(ctx context.Context, u *Update) {
	f(ctx, u)
}

// ErrorReporter is called on transport failures. The Link keeps running.
type ErrorReporter interface {
	ReportError(context.Context, error)
}

// ReportErrorFunc is func type of ErrorReporter.
type ReportErrorFunc func(context.Context, error)

// ReportError implements ErrorReporter.
func (f ReportErrorFunc) ReportError(ctx context.Context, err error) {
	f(ctx, err)
}

// LinkStats are counters of the Link.
type LinkStats struct {
	BytesIn     uint64
	PacketsIn   uint64
	PacketsOut  uint64
	ReadErrors  uint64
	WriteErrors uint64
}

// Link drives the read/dispatch/write cycle over a Transport.
type Link struct {
	Transport Transport
	Engine    *Engine
	Notifier  UpdateNotifier
	Reporter  ErrorReporter
	Timeout   time.Duration

	bytesIn     atomic.Uint64
	packetsIn   atomic.Uint64
	packetsOut  atomic.Uint64
	readErrors  atomic.Uint64
	writeErrors atomic.Uint64
}

// NewLink creates a Link.
func NewLink(t Transport, engine *Engine) *Link {
	return &Link{
		Transport: t,
		Engine:    engine,
		Timeout:   100 * time.Millisecond,
	}
}

// Stats returns the counters.
func (l *Link) Stats() LinkStats {
	return LinkStats{
		BytesIn:     l.bytesIn.Load(),
		PacketsIn:   l.packetsIn.Load(),
		PacketsOut:  l.packetsOut.Load(),
		ReadErrors:  l.readErrors.Load(),
		WriteErrors: l.writeErrors.Load(),
	}
}

// Run processes frames until ctx is cancelled. The command queue is left
// as-is on return.
func (l *Link) Run(ctx context.Context) error {
	maxLen := l.Transport.MaxPacketSize()
	if maxLen <= 0 {
		maxLen = FrameSize
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !l.step(ctx, maxLen) {
			l.backoff(ctx)
		}
	}
}

// step runs one iteration, it returns false when the read failed.
func (l *Link) step(ctx context.Context, maxLen int) bool {
	control := false
	buf, err := l.Transport.ReadPacket(ctx, maxLen, l.Timeout)
	if errors.Is(err, ErrStreamNotReady) {
		control = true
		buf, err = l.Transport.ControlRead(ctx, StreamControlRequest, maxLen, l.Timeout)
	}
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		l.readErrors.Add(1)
		op := "read"
		if control {
			op = "control"
		}
		l.report(ctx, &TransportError{Op: op, Err: err})
		return false
	}
	if len(buf) == 0 {
		return true
	}
	l.bytesIn.Add(uint64(len(buf)))
	l.packetsIn.Add(1)

	kind, out := l.Engine.Dispatch(buf, control)
	if out != nil {
		if err := l.Transport.WritePacket(ctx, out, l.Timeout); err != nil {
			l.writeErrors.Add(1)
			l.report(ctx, &TransportError{Op: "write", Err: err})
		} else {
			l.packetsOut.Add(1)
		}
	}
	if kind != SensorNone && l.Notifier != nil {
		l.Notifier.SensorUpdated(ctx, &Update{Kind: kind, Sensors: l.Engine.Snapshot()})
	}
	return true
}

func (l *Link) report(ctx context.Context, err error) {
	if r := l.Reporter; r != nil {
		r.ReportError(ctx, err)
	}
}

func (l *Link) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(l.Timeout):
	}
}
