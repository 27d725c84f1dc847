// Package usb implements comm.Transport over libusb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/robotalks/katwalk/pkg/l0/comm"
)

// Default device ids of the KAT Walk C2 receiver.
const (
	DefaultVendorID  = 0xc4f4
	DefaultProductID = 0x2f37
)

// ErrNotFound indicates no matching device is attached.
var ErrNotFound = errors.New("device not found")

// Transport is a claimed receiver.
type Transport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	serial string
}

// Open finds the device by ids and claims its default interface.
func Open(vid, pid uint16) (*Transport, error) {
	t := &Transport{ctx: gousb.NewContext()}
	dev, err := t.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		t.Close()
		return nil, ErrNotFound
	}
	t.dev = dev
	if err = dev.SetAutoDetach(true); err != nil {
		t.Close()
		return nil, fmt.Errorf("auto detach: %w", err)
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}
	t.done = done

	for _, ep := range intf.Setting.Endpoints {
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && t.in == nil:
			t.in, err = intf.InEndpoint(ep.Number)
		case ep.Direction == gousb.EndpointDirectionOut && t.out == nil:
			t.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("endpoint %s: %w", ep, err)
		}
	}
	if t.in == nil || t.out == nil {
		t.Close()
		return nil, fmt.Errorf("%s: missing bulk endpoints", intf)
	}
	t.serial, _ = dev.SerialNumber()
	return t, nil
}

// Serial returns the serial number string of the device.
func (t *Transport) Serial() string {
	return t.serial
}

// Close releases the interface and the device.
func (t *Transport) Close() error {
	var err error
	if t.done != nil {
		t.done()
		t.done = nil
	}
	if t.dev != nil {
		err = t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		if e := t.ctx.Close(); err == nil {
			err = e
		}
		t.ctx = nil
	}
	return err
}

// MaxPacketSize implements comm.Transport.
func (t *Transport) MaxPacketSize() int {
	return t.in.Desc.MaxPacketSize
}

// ReadPacket implements comm.Transport.
func (t *Transport) ReadPacket(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	buf := make([]byte, maxLen)
	n, err := t.in.ReadContext(opCtx, buf)
	if err != nil {
		if n > 0 {
			return buf[:n], nil
		}
		return nil, mapError(ctx, err)
	}
	return buf[:n], nil
}

// ControlRead implements comm.Transport.
func (t *Transport) ControlRead(ctx context.Context, req comm.ControlRequest, maxLen int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, maxLen)
	t.dev.ControlTimeout = timeout
	n, err := t.dev.Control(req.RequestType, req.Request, req.Value, req.Index, buf)
	if err != nil {
		err = mapError(ctx, err)
		if errors.Is(err, comm.ErrStreamNotReady) {
			return nil, nil
		}
		return nil, err
	}
	return buf[:n], nil
}

// WritePacket implements comm.Transport.
func (t *Transport) WritePacket(ctx context.Context, pkt []byte, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	n, err := t.out.WriteContext(opCtx, pkt)
	if err != nil {
		return mapError(ctx, err)
	}
	if n != len(pkt) {
		return fmt.Errorf("short write %d/%d", n, len(pkt))
	}
	return nil
}

// mapError translates libusb errors into comm errors. A cancelled
// transfer is a timeout unless ctx itself is done.
func mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.TransferNoDevice):
		return fmt.Errorf("%w: %v", comm.ErrDisconnected, err)
	case errors.Is(err, gousb.ErrorTimeout), errors.Is(err, gousb.TransferTimedOut):
		return comm.ErrStreamNotReady
	case errors.Is(err, gousb.TransferCancelled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return comm.ErrStreamNotReady
	}
	return err
}
