package comm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientCommands(t *testing.T) {
	c := NewClient(newFakeTransport())
	c.SetLEDLevel(0.5)
	c.StartStream()
	c.StopStream()
	require.NoError(t, c.SendRaw([]byte{0x1f, 0x55}))
	require.ErrorIs(t, c.SendRaw(make([]byte, 33)), ErrFrameTooLong)
	require.Equal(t, 4, c.Engine().Pending())

	expects := []Command{SetLED{Level: 0.5}, StartStream{}, StopStream{}}
	for _, cmd := range expects {
		require.Equal(t, cmd, c.Engine().queue.Pop())
	}
	raw, ok := c.Engine().queue.Pop().(Raw)
	require.True(t, ok)
	f := Encode(raw)
	require.True(t, f.IsValid())
}

func TestClientRun(t *testing.T) {
	transport := newFakeTransport()
	c := NewClient(transport)
	c.Link().Timeout = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.TODO())
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- c.Run(ctx)
	}()

	transport.inject(configFrame(5, 1))
	select {
	case u := <-c.UpdateChan():
		require.Equal(t, SensorDirection, u.Kind)
		require.Equal(t, 5, u.Sensors.Direction.ID)
	case <-time.After(time.Second):
		t.Fatal("no update")
	}

	transport.injectErr(ErrDisconnected)
	select {
	case err := <-c.ErrorChan():
		require.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(time.Second):
		t.Fatal("no error")
	}

	c.SetLEDLevel(1)
	c.ZeroHeading()
	c.SetAngleZero(10)
	require.InDelta(t, 10, c.Engine().Snapshot().Direction.AngleZero, 1e-9)

	cancel()
	require.ErrorIs(t, <-doneCh, context.Canceled)
	require.Equal(t, 1, c.Engine().Pending())
}

func TestClientDropsUpdates(t *testing.T) {
	transport := newFakeTransport()
	c := NewClient(transport)
	c.Link().Timeout = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < DefaultUpdateBuffer+3; i++ {
		transport.inject(configFrame(5, 1))
	}
	transport.inject(garbageFrame())
	require.Equal(t, uint64(3), c.DroppedUpdates())
	require.Len(t, c.UpdateChan(), DefaultUpdateBuffer)
}
