package katwalk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/katwalk/msgs"
	"github.com/robotalks/katwalk/pkg/l0/comm"
	"github.com/robotalks/katwalk/pkg/l0/usb"
	"github.com/robotalks/katwalk/pkg/l1"
	l1msgs "github.com/robotalks/katwalk/pkg/l1/msgs"
)

type fakeDevice struct {
	readCh  chan []byte
	errCh   chan error
	writeCh chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		readCh:  make(chan []byte),
		errCh:   make(chan error, 1),
		writeCh: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (d *fakeDevice) MaxPacketSize() int { return comm.FrameSize }
func (d *fakeDevice) Serial() string     { return "KAT-TEST" }

func (d *fakeDevice) ReadPacket(ctx context.Context, maxLen int, timeout time.Duration) ([]byte, error) {
	select {
	case data := <-d.readCh:
		return data, nil
	case err := <-d.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (d *fakeDevice) ControlRead(ctx context.Context, req comm.ControlRequest, maxLen int, timeout time.Duration) ([]byte, error) {
	return nil, nil
}

func (d *fakeDevice) WritePacket(ctx context.Context, pkt []byte, timeout time.Duration) error {
	select {
	case d.writeCh <- append([]byte(nil), pkt...):
	default:
	}
	return nil
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

type recordingRegistrar struct {
	eventCh chan fx.Message
	lock    sync.Mutex
	metas   []l1.ControllerMeta
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{eventCh: make(chan fx.Message, 64)}
}

func (r *recordingRegistrar) SendEvent(_ context.Context, msg fx.Message) error {
	r.eventCh <- msg
	return nil
}

func (r *recordingRegistrar) UpdateMeta(_ context.Context, meta l1.ControllerMeta) error {
	r.lock.Lock()
	r.metas = append(r.metas, meta)
	r.lock.Unlock()
	return nil
}

func (r *recordingRegistrar) lastMeta() l1.ControllerMeta {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.metas[len(r.metas)-1]
}

type fakeCommand struct {
	msg     fx.Message
	replyCh chan fx.Message
}

func (c *fakeCommand) Msg() fx.Message { return c.msg }

func (c *fakeCommand) Done(reply fx.Message) error {
	c.replyCh <- reply
	return nil
}

func doCommand(t *testing.T, l *fx.Loop, msg fx.Message) fx.Message {
	cmd := &fakeCommand{msg: msg, replyCh: make(chan fx.Message, 1)}
	l.Notify(&l1.CommandMsg{Command: cmd})
	select {
	case reply := <-cmd.replyCh:
		return reply
	case <-time.After(3 * time.Second):
		t.Fatalf("no reply for %T", msg)
	}
	return nil
}

func waitEvent[T fx.Message](t *testing.T, r *recordingRegistrar, accept func(T) bool) T {
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg := <-r.eventCh:
			if ev, ok := msg.(T); ok && accept(ev) {
				return ev
			}
		case <-timeout:
			var zero T
			t.Fatalf("event %T not received", zero)
			return zero
		}
	}
}

func configFrame(id, sel byte) []byte {
	f := comm.NewFrame(comm.OpConfig)
	f[6], f[7], f[11] = id, sel, 1
	return f.Bytes()
}

// headingFrame encodes a direction sample pointing at 90 degrees.
func headingFrame(id byte) []byte {
	f := comm.NewFrame(comm.OpSample)
	f[6] = id
	f[9], f[10] = 0x00, 0xe0
	f[11], f[12] = 0x00, 0x20
	return f.Bytes()
}

func TestGatewaySession(t *testing.T) {
	dev := newFakeDevice()
	opened := false
	reg := newRecordingRegistrar()
	g := NewGateway(reg, func() (Device, error) {
		if opened {
			return nil, usb.ErrNotFound
		}
		opened = true
		return dev, nil
	})
	g.Meta = l1.ControllerMeta{Description: "test"}
	g.LEDLevel = 0.5
	g.MinInterval = 0
	g.DetectInterval = 10 * time.Millisecond

	l := fx.NewLoop()
	l.Add(g)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	status := waitEvent(t, reg, func(s *msgs.DeviceStatus) bool { return s.Connected })
	require.Equal(t, "KAT-TEST", status.Serial)
	require.Eventually(t, func() bool {
		return reg.lastMeta().Device == l1.DeviceConnected
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "test", reg.lastMeta().Description)

	dev.readCh <- configFrame(7, 1)
	led := <-dev.writeCh
	ledFrame := comm.Encode(comm.SetLED{Level: 0.5})
	require.Equal(t, ledFrame.Bytes(), led)
	dev.readCh <- headingFrame(7)

	update := waitEvent(t, reg, func(u *msgs.SensorUpdate) bool {
		return u.Kind == "direction" && u.Direction.Angle > 1
	})
	require.InDelta(t, 90, update.Direction.Angle, 1e-6)
	require.Equal(t, int32(7), update.Direction.Info.ID)

	reply := doCommand(t, l, &msgs.SetAngleZero{Current: true})
	require.InDelta(t, 90, reply.(*msgs.AngleZeroReply).Degrees, 1e-6)

	reply = doCommand(t, l, &msgs.StatusQuery{})
	statusReply := reply.(*msgs.StatusReply)
	require.True(t, statusReply.Status.Connected)
	require.Equal(t, uint64(2), statusReply.Status.Stats.Frames)
	require.NotNil(t, statusReply.Sensors)

	reply = doCommand(t, l, &msgs.StreamControl{Start: true})
	require.IsType(t, &l1msgs.CommandOK{}, reply)
	reply = doCommand(t, l, &msgs.SendRaw{Data: make([]byte, comm.FrameSize+1)})
	require.IsType(t, &l1msgs.CommandErr{}, reply)

	dev.errCh <- fmt.Errorf("usb: %w", comm.ErrDisconnected)
	waitEvent(t, reg, func(s *msgs.DeviceStatus) bool { return !s.Connected })
	select {
	case <-dev.closed:
	case <-time.After(time.Second):
		t.Fatal("device not closed")
	}
	_, _, ok := g.SessionStats()
	require.False(t, ok)

	reply = doCommand(t, l, &msgs.SetLED{Level: 1})
	require.EqualError(t, reply.(*l1msgs.CommandErr), ErrNoDevice.Error())
}

func TestGatewayPublishThrottle(t *testing.T) {
	reg := newRecordingRegistrar()
	g := NewGateway(reg, nil)
	g.MinInterval = 10 * time.Millisecond

	now := time.Unix(1000, 0)
	l := fx.NewLoop()
	l.Clock = func() time.Time { return now }
	l.AddController(fx.PrLvPublish, fx.ControlFunc(g.publish))

	sensors := comm.NewSensors()
	g.latest, g.pending = &comm.Update{Kind: comm.SensorLeftFoot, Sensors: sensors}, true
	l.RunIteration(context.Background())
	require.IsType(t, &msgs.DeviceStatus{}, <-reg.eventCh)
	require.IsType(t, &msgs.SensorUpdate{}, <-reg.eventCh)
	require.Equal(t, l1.DeviceDetecting, reg.lastMeta().Device)

	g.pending = true
	now = now.Add(5 * time.Millisecond)
	l.RunIteration(context.Background())
	require.Empty(t, reg.eventCh)

	now = now.Add(5 * time.Millisecond)
	l.RunIteration(context.Background())
	ev := <-reg.eventCh
	require.Equal(t, "left-foot", ev.(*msgs.SensorUpdate).Kind)
	require.False(t, g.pending)
}

func TestGatewayCommandsWithoutDevice(t *testing.T) {
	g := NewGateway(newRecordingRegistrar(), nil)
	l := fx.NewLoop()
	l.AddController(fx.PrLvControl, g)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	for _, msg := range []fx.Message{
		&msgs.SetLED{Level: 0.2},
		&msgs.StreamControl{},
		&msgs.SendRaw{Data: []byte{1}},
		&msgs.SetAngleZero{Degrees: 10},
	} {
		reply := doCommand(t, l, msg)
		require.EqualError(t, reply.(*l1msgs.CommandErr), ErrNoDevice.Error(), "%T", msg)
	}
	reply := doCommand(t, l, &msgs.StatusQuery{})
	require.False(t, reply.(*msgs.StatusReply).Status.Connected)
	require.Nil(t, reply.(*msgs.StatusReply).Sensors)
}

func TestGatewayPersistsSensors(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	g := NewGateway(newRecordingRegistrar(), nil)
	g.Store = store

	sensors := comm.NewSensors()
	sensors.LeftFoot.SensorInfo = comm.SensorInfo{ID: 4, Version: 2}
	sensors.Direction.AngleZero = 12
	g.persist(time.Now(), &sensors)

	infos, err := store.LoadSensors()
	require.NoError(t, err)
	require.Equal(t, map[comm.SensorKind]comm.SensorInfo{comm.SensorLeftFoot: {ID: 4, Version: 2}}, infos)
	deg, ok, err := store.LoadAngleZero()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(12), deg)
}
