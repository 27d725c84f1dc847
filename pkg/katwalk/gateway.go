// Package katwalk implements the L1 gateway of the KAT Walk C2
// treadmill: it owns the USB session and exposes sensors and commands
// through the registrars.
package katwalk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/katwalk/msgs"
	"github.com/robotalks/katwalk/pkg/l0/comm"
	"github.com/robotalks/katwalk/pkg/l0/usb"
	"github.com/robotalks/katwalk/pkg/l1"
	l1msgs "github.com/robotalks/katwalk/pkg/l1/msgs"
)

// DefaultDetectInterval is the interval between device detections.
const DefaultDetectInterval = time.Second

// ErrNoDevice is replied to commands while no device is connected.
var ErrNoDevice = errors.New("no device connected")

// Device is an opened receiver.
type Device interface {
	comm.Transport
	Serial() string
	Close() error
}

// Opener opens the receiver, it returns usb.ErrNotFound when absent.
type Opener func() (Device, error)

// USBOpener opens the receiver by USB ids.
func USBOpener(vid, pid uint16) Opener {
	return func() (Device, error) {
		t, err := usb.Open(vid, pid)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Gateway is the L1 gateway controller.
type Gateway struct {
	Registrar      l1.Registrar
	Meta           l1.ControllerMeta
	Open           Opener
	Store          *Store
	Stats          *StatsReporter
	Opcodes        comm.Opcodes
	LEDLevel       float64
	MinInterval    time.Duration
	DetectInterval time.Duration

	// current is shared with the stats reporter.
	current     *session
	currentLock sync.RWMutex

	// owned by the loop.
	session       *session
	latest        *comm.Update
	pending       bool
	lastSent      time.Time
	statusChanged bool
	saved         map[comm.SensorKind]comm.SensorInfo
	savedZero     float64
}

type session struct {
	device Device
	client *comm.Client
	cancel func()
	done   chan struct{}
}

func (s *session) close() {
	s.cancel()
	<-s.done
	// the link must be stopped before the transport goes away.
	if err := s.device.Close(); err != nil {
		glog.Warningf("close device: %v", err)
	}
}

// NewGateway creates a Gateway.
func NewGateway(reg l1.Registrar, open Opener) *Gateway {
	return &Gateway{
		Registrar:      reg,
		Open:           open,
		Opcodes:        comm.DefaultOpcodes,
		LEDLevel:       defaultConfig.LEDLevel,
		MinInterval:    defaultConfig.MinInterval,
		DetectInterval: DefaultDetectInterval,
		statusChanged:  true,
		saved:          make(map[comm.SensorKind]comm.SensorInfo),
	}
}

// AddToLoop implements LoopAdder.
func (g *Gateway) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(g)
	if g.Stats != nil {
		loop.AddRunnable(g.Stats)
	}
	loop.AddController(fx.PrLvDevice, fx.ControlFunc(g.trackDevice))
	loop.AddController(fx.PrLvControl, g)
	loop.AddController(fx.PrLvPublish, fx.ControlFunc(g.publish))
}

// SessionStats implements StatsSource.
func (g *Gateway) SessionStats() (comm.EngineStats, comm.LinkStats, bool) {
	g.currentLock.RLock()
	s := g.current
	g.currentLock.RUnlock()
	if s == nil {
		return comm.EngineStats{}, comm.LinkStats{}, false
	}
	return s.client.Engine().Stats(), s.client.Link().Stats(), true
}

// Close releases the Store. Call it after the loop stopped.
func (g *Gateway) Close() error {
	if g.Store == nil {
		return nil
	}
	return g.Store.Close()
}

// Run implements Runnable. It detects the device and pumps the session
// into the loop.
func (g *Gateway) Run(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	var sess *session
	defer func() {
		if sess != nil {
			sess.close()
		}
	}()
	detectTimer := time.After(0)
	for {
		var updateCh <-chan *comm.Update
		var errCh <-chan error
		if sess != nil {
			updateCh, errCh = sess.client.UpdateChan(), sess.client.ErrorChan()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-detectTimer:
			detectTimer = nil
			s, err := g.openSession(ctx)
			if err != nil {
				if !errors.Is(err, usb.ErrNotFound) {
					glog.Warningf("open device: %v", err)
				}
				detectTimer = time.After(g.detectInterval())
				continue
			}
			sess = s
			g.setCurrent(s)
			glog.Infof("device %q connected", s.device.Serial())
			loopCtl.Notify(&sessionMsg{session: s})
		case u := <-updateCh:
			loopCtl.Notify(&updateMsg{update: u})
		case err := <-errCh:
			if !errors.Is(err, comm.ErrDisconnected) {
				glog.Warningf("device: %v", err)
				continue
			}
			glog.Warningf("device %q disconnected: %v", sess.device.Serial(), err)
			g.setCurrent(nil)
			sess.close()
			sess = nil
			loopCtl.Notify(&sessionMsg{})
			detectTimer = time.After(g.detectInterval())
		}
	}
}

func (g *Gateway) detectInterval() time.Duration {
	if g.DetectInterval > 0 {
		return g.DetectInterval
	}
	return DefaultDetectInterval
}

func (g *Gateway) setCurrent(s *session) {
	g.currentLock.Lock()
	g.current = s
	g.currentLock.Unlock()
}

func (g *Gateway) openSession(ctx context.Context) (*session, error) {
	dev, err := g.Open()
	if err != nil {
		return nil, err
	}
	engine := comm.NewEngine()
	engine.Opcodes = g.Opcodes
	if g.Store != nil {
		if err := g.Store.RestoreInto(engine); err != nil {
			glog.Warningf("restore sensors: %v", err)
		}
	}
	client := comm.NewClientWithEngine(dev, engine)
	if g.LEDLevel >= 0 {
		client.SetLEDLevel(g.LEDLevel)
	}
	s := &session{device: dev, client: client, done: make(chan struct{})}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		client.Run(sctx)
	}()
	return s, nil
}

// trackDevice folds session changes and sensor updates into the loop
// state.
func (g *Gateway) trackDevice(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *sessionMsg:
			mctx.MessageTaken()
			g.session, g.latest, g.pending = msg.session, nil, false
			g.statusChanged = true
		case *updateMsg:
			mctx.MessageTaken()
			g.latest, g.pending = msg.update, true
			if glog.V(2) {
				glog.Infof("%s: heading %.1f", msg.update.Kind, msg.update.DirectionAngleDeg())
			}
			g.persist(cc.Time(), &msg.update.Sensors)
		}
	}))
	return nil
}

func (g *Gateway) persist(now time.Time, sensors *comm.Sensors) {
	if g.Store == nil {
		return
	}
	for _, kind := range []comm.SensorKind{comm.SensorDirection, comm.SensorLeftFoot, comm.SensorRightFoot} {
		info := *sensors.Sensor(kind).Info()
		if !info.Configured() || info.Provisional || g.saved[kind] == info {
			continue
		}
		if err := g.Store.SaveSensor(kind, info, now); err != nil {
			glog.Warningf("save sensor: %v", err)
			continue
		}
		g.saved[kind] = info
	}
	if zero := sensors.Direction.AngleZero; zero != g.savedZero {
		g.saveAngleZero(now, zero)
	}
}

func (g *Gateway) saveAngleZero(now time.Time, zero float64) {
	g.savedZero = zero
	if g.Store == nil {
		return
	}
	if err := g.Store.SaveAngleZero(zero, now); err != nil {
		glog.Warningf("save angle zero: %v", err)
	}
}

// Control implements Controller.
func (g *Gateway) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		reply := g.handleCommand(cc, cmdMsg.Command.Msg())
		if reply == nil {
			return
		}
		mctx.MessageTaken()
		errs.Add(cmdMsg.Command.Done(reply))
	}))
	return errs.Aggregate()
}

func (g *Gateway) handleCommand(cc fx.ControlContext, msg fx.Message) fx.Message {
	switch msg.(type) {
	case *msgs.StatusQuery:
		reply := &msgs.StatusReply{Status: g.deviceStatus()}
		if g.latest != nil {
			reply.Sensors = msgs.SensorUpdateFrom(g.latest.Kind, &g.latest.Sensors)
		}
		return reply
	case *msgs.SetLED, *msgs.StreamControl, *msgs.SendRaw, *msgs.SetAngleZero:
	default:
		return nil
	}
	s := g.session
	if s == nil {
		return l1msgs.NewCommandErr(ErrNoDevice)
	}
	switch m := msg.(type) {
	case *msgs.SetLED:
		s.client.SetLEDLevel(m.Level)
	case *msgs.StreamControl:
		if m.Start {
			s.client.StartStream()
		} else {
			s.client.StopStream()
		}
	case *msgs.SendRaw:
		if err := s.client.SendRaw(m.Data); err != nil {
			return l1msgs.NewCommandErr(err)
		}
	case *msgs.SetAngleZero:
		deg := m.Degrees
		if m.Current {
			deg = s.client.ZeroHeading()
		} else {
			s.client.SetAngleZero(deg)
		}
		g.saveAngleZero(cc.Time(), deg)
		return &msgs.AngleZeroReply{Degrees: deg}
	}
	return l1msgs.NewCommandOK()
}

func (g *Gateway) deviceStatus() *msgs.DeviceStatus {
	s := g.session
	if s == nil {
		return &msgs.DeviceStatus{}
	}
	stats := msgs.LinkStatsFrom(s.client.Engine().Stats(), s.client.Link().Stats())
	stats.DroppedUpdates = s.client.DroppedUpdates()
	stats.PendingCommands = uint32(s.client.Engine().Pending())
	return &msgs.DeviceStatus{
		Connected: true,
		Serial:    s.device.Serial(),
		Stats:     stats,
	}
}

// publish emits events for changes in this iteration.
func (g *Gateway) publish(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	ctx := cc.Context()
	if g.statusChanged {
		g.statusChanged = false
		status := g.deviceStatus()
		errs.Add(g.Registrar.SendEvent(ctx, status))
		if updater, ok := g.Registrar.(l1.MetaUpdater); ok {
			meta := g.Meta
			meta.Device = l1.DeviceDetecting
			if status.Connected {
				meta.Device = l1.DeviceConnected
			}
			errs.Add(updater.UpdateMeta(ctx, meta))
		}
	}
	if g.pending && g.latest != nil {
		now := cc.Time()
		if g.MinInterval <= 0 || now.Sub(g.lastSent) >= g.MinInterval {
			g.pending, g.lastSent = false, now
			errs.Add(g.Registrar.SendEvent(ctx, msgs.SensorUpdateFrom(g.latest.Kind, &g.latest.Sensors)))
		}
	}
	return errs.Aggregate()
}

type sessionMsg struct {
	session *session
}

func (m *sessionMsg) NewMessage() fx.Message { return &sessionMsg{} }

type updateMsg struct {
	update *comm.Update
}

func (m *updateMsg) NewMessage() fx.Message { return &updateMsg{} }
