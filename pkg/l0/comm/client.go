package comm

import (
	"context"
	"sync/atomic"
)

// DefaultUpdateBuffer is the capacity of the update chan.
const DefaultUpdateBuffer = 16

// Client is one device session: it exposes the command API and delivers
// sensor updates and transport errors over chans.
type Client struct {
	engine   *Engine
	link     *Link
	updateCh chan *Update
	errCh    chan error
	dropped  atomic.Uint64
}

// NewClient creates a Client over the transport.
func NewClient(t Transport) *Client {
	return NewClientWithEngine(t, NewEngine())
}

// NewClientWithEngine creates a Client using a prepared Engine.
func NewClientWithEngine(t Transport, engine *Engine) *Client {
	c := &Client{
		engine:   engine,
		link:     NewLink(t, engine),
		updateCh: make(chan *Update, DefaultUpdateBuffer),
		errCh:    make(chan error, 1),
	}
	c.link.Notifier = SensorUpdatedFunc(func(ctx context.Context, u *Update) {
		select {
		case c.updateCh <- u:
		default:
			c.dropped.Add(1)
		}
	})
	c.link.Reporter = ReportErrorFunc(func(ctx context.Context, err error) {
		select {
		case c.errCh <- err:
		default:
		}
	})
	return c
}

// Engine gets the wrapped Engine.
func (c *Client) Engine() *Engine {
	return c.engine
}

// Link gets the wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// UpdateChan retrieves the sensor update chan.
func (c *Client) UpdateChan() <-chan *Update {
	return c.updateCh
}

// ErrorChan retrieves the transport error chan. Errors are dropped if
// not consumed in time.
func (c *Client) ErrorChan() <-chan error {
	return c.errCh
}

// DroppedUpdates returns the number of updates not delivered because
// UpdateChan was full.
func (c *Client) DroppedUpdates() uint64 {
	return c.dropped.Load()
}

// SetLEDLevel queues an LED brightness change, level in [0, 1].
func (c *Client) SetLEDLevel(level float64) {
	c.engine.Enqueue(SetLED{Level: level})
}

// StartStream queues a start-stream command.
func (c *Client) StartStream() {
	c.engine.Enqueue(StartStream{})
}

// StopStream queues a stop-stream command.
func (c *Client) StopStream() {
	c.engine.Enqueue(StopStream{})
}

// SendRaw queues raw bytes, at most FrameSize.
func (c *Client) SendRaw(data []byte) error {
	cmd, err := NewRaw(data)
	if err != nil {
		return err
	}
	c.engine.Enqueue(cmd)
	return nil
}

// SetAngleZero sets the heading reference in degrees.
func (c *Client) SetAngleZero(deg float64) {
	c.engine.SetAngleZero(deg)
}

// ZeroHeading makes the current heading read 0.
func (c *Client) ZeroHeading() float64 {
	return c.engine.ZeroHeading()
}

// Run wraps Link.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.link.Run(ctx)
}
