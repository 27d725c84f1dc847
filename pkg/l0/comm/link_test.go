package comm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type readResult struct {
	data []byte
	err  error
}

type fakeTransport struct {
	readCh    chan readResult
	controlCh chan readResult
	writeCh   chan []byte

	lock      sync.Mutex
	writeErr  error
	controlRq []ControlRequest
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		readCh:    make(chan readResult),
		controlCh: make(chan readResult, 1),
		writeCh:   make(chan []byte, 16),
	}
}

func (t *fakeTransport) MaxPacketSize() int {
	return 64
}

func (t *fakeTransport) ReadPacket(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error) {
	select {
	case r := <-t.readCh:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (t *fakeTransport) ControlRead(ctx context.Context, req ControlRequest, maxLen int, timeout time.Duration) ([]byte, error) {
	t.lock.Lock()
	t.controlRq = append(t.controlRq, req)
	t.lock.Unlock()
	select {
	case r := <-t.controlCh:
		return r.data, r.err
	default:
		return nil, nil
	}
}

func (t *fakeTransport) WritePacket(ctx context.Context, pkt []byte, timeout time.Duration) error {
	t.lock.Lock()
	err := t.writeErr
	t.lock.Unlock()
	if err != nil {
		return err
	}
	t.writeCh <- append([]byte(nil), pkt...)
	return nil
}

func (t *fakeTransport) setWriteErr(err error) {
	t.lock.Lock()
	t.writeErr = err
	t.lock.Unlock()
}

func (t *fakeTransport) inject(data []byte) {
	t.readCh <- readResult{data: data}
}

func (t *fakeTransport) injectErr(err error) {
	t.readCh <- readResult{err: err}
}

type linkTestEnv struct {
	t         *testing.T
	transport *fakeTransport
	engine    *Engine
	link      *Link
	updateCh  chan *Update
	errCh     chan error
	cancel    context.CancelFunc
	doneCh    chan error
}

func newLinkTestEnv(t *testing.T) *linkTestEnv {
	env := &linkTestEnv{
		t:         t,
		transport: newFakeTransport(),
		engine:    NewEngine(),
		updateCh:  make(chan *Update, 16),
		errCh:     make(chan error, 16),
		doneCh:    make(chan error, 1),
	}
	env.link = NewLink(env.transport, env.engine)
	env.link.Timeout = 10 * time.Millisecond
	env.link.Notifier = SensorUpdatedFunc(func(ctx context.Context, u *Update) {
		env.updateCh <- u
	})
	env.link.Reporter = ReportErrorFunc(func(ctx context.Context, err error) {
		env.errCh <- err
	})
	return env
}

func (e *linkTestEnv) start() {
	ctx, cancel := context.WithCancel(context.TODO())
	e.cancel = cancel
	go func() {
		e.doneCh <- e.link.Run(ctx)
	}()
}

func (e *linkTestEnv) stop() {
	e.cancel()
	select {
	case err := <-e.doneCh:
		require.ErrorIs(e.t, err, context.Canceled)
	case <-time.After(time.Second):
		e.t.Fatal("link not stopped")
	}
}

func (e *linkTestEnv) expectWrite(expect []byte) {
	select {
	case b := <-e.transport.writeCh:
		require.Equal(e.t, expect, b)
	case <-time.After(time.Second):
		e.t.Fatalf("expect write % x", expect)
	}
}

func (e *linkTestEnv) expectNoWrite() {
	select {
	case b := <-e.transport.writeCh:
		e.t.Fatalf("unexpected write % x", b)
	default:
	}
}

func (e *linkTestEnv) expectUpdate(kind SensorKind) *Update {
	select {
	case u := <-e.updateCh:
		require.Equal(e.t, kind, u.Kind)
		return u
	case <-time.After(time.Second):
		e.t.Fatalf("expect update %s", kind)
	}
	return nil
}

func (e *linkTestEnv) expectErr(target error) error {
	select {
	case err := <-e.errCh:
		require.ErrorIs(e.t, err, target)
		return err
	case <-time.After(time.Second):
		e.t.Fatalf("expect error %v", target)
	}
	return nil
}

func TestLinkDispatch(t *testing.T) {
	env := newLinkTestEnv(t)
	env.start()
	defer env.stop()

	env.transport.inject(configFrame(7, 1))
	env.expectUpdate(SensorDirection)
	env.engine.Enqueue(SetLED{Level: 0.5})
	env.transport.inject(sampleFrame(7))
	u := env.expectUpdate(SensorDirection)
	require.InDelta(t, 90, u.DirectionAngleDeg(), 1e-9)
	env.expectWrite(frameOf(SetLED{Level: 0.5}))

	stopped := NewFrame(OpStopConfirm)
	env.transport.inject(stopped[:])
	env.expectWrite(frameOf(StartStream{}))
	env.transport.inject(sampleFrame(8))
	env.transport.inject(sampleFrame(7))
	env.expectUpdate(SensorDirection)
	env.expectNoWrite()

	stats := env.link.Stats()
	require.Equal(t, uint64(5), stats.PacketsIn)
	require.Equal(t, uint64(2), stats.PacketsOut)
	require.Equal(t, uint64(5*FrameSize), stats.BytesIn)
}

func TestLinkSnapshotIsCopy(t *testing.T) {
	env := newLinkTestEnv(t)
	env.start()
	defer env.stop()

	env.transport.inject(configFrame(7, 1))
	u := env.expectUpdate(SensorDirection)
	u.Sensors.Direction.ID = 99
	require.Equal(t, 7, env.engine.Snapshot().Direction.ID)
}

func TestLinkControlRead(t *testing.T) {
	env := newLinkTestEnv(t)
	env.transport.controlCh <- readResult{data: configFrame(9, 2)}
	env.start()
	defer env.stop()

	env.transport.injectErr(ErrStreamNotReady)
	env.expectUpdate(SensorLeftFoot)
	require.Equal(t, uint64(1), env.engine.Stats().ControlFrames)
	env.transport.lock.Lock()
	require.Equal(t, []ControlRequest{StreamControlRequest}, env.transport.controlRq)
	env.transport.lock.Unlock()
}

func TestLinkReadError(t *testing.T) {
	env := newLinkTestEnv(t)
	env.start()
	defer env.stop()

	ioErr := errors.New("io")
	env.transport.injectErr(ioErr)
	err := env.expectErr(ioErr)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "read", te.Op)

	env.transport.inject(configFrame(7, 3))
	env.expectUpdate(SensorRightFoot)
	require.Equal(t, uint64(1), env.link.Stats().ReadErrors)

	env.transport.injectErr(ErrDisconnected)
	env.expectErr(ErrDisconnected)
}

func TestLinkWriteError(t *testing.T) {
	env := newLinkTestEnv(t)
	env.start()
	defer env.stop()

	writeErr := errors.New("pipe")
	env.transport.setWriteErr(writeErr)
	env.engine.Enqueue(SetLED{Level: 1})
	env.engine.Enqueue(StopStream{})
	status := NewFrame(OpStatus)
	env.transport.inject(status[:])
	env.expectErr(writeErr)

	env.transport.setWriteErr(nil)
	env.transport.inject(status[:])
	env.expectWrite(frameOf(StopStream{}))
	require.Equal(t, uint64(1), env.link.Stats().WriteErrors)
}

func TestLinkStopKeepsQueue(t *testing.T) {
	env := newLinkTestEnv(t)
	env.start()
	env.engine.Enqueue(StartStream{})
	env.engine.Enqueue(StopStream{})
	env.stop()
	require.Equal(t, 2, env.engine.Pending())
}
