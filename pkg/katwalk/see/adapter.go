// Package see is the adapter to visualize treadmill sensors in
// github.com/robotalks/see: the heading as a rotating arrow and each
// foot as a dot.
package see

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/katwalk/msgs"
)

// Foot dot radius.
const (
	GroundRadius = 10
	AirRadius    = 5
)

// Adapter consumes SensorUpdate and DeviceStatus events and writes see
// messages as JSON lines.
type Adapter struct {
	Config *Config
	Out    io.Writer

	initial bool
	update  *msgs.SensorUpdate
	removed bool
}

// NewAdapter creates the adapter.
func NewAdapter(config *Config) *Adapter {
	return &Adapter{
		Config:  config,
		Out:     os.Stdout,
		initial: true,
	}
}

// AddToLoop implements LoopAdder.
func (a *Adapter) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(a.ReportChanges))
}

// ReportChanges is a controller to report changes.
func (a *Adapter) ReportChanges(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch m := mctx.CurrentMessage().(type) {
		case *msgs.SensorUpdate:
			a.update, a.removed = m, false
		case *msgs.DeviceStatus:
			if !m.Connected {
				a.update, a.removed = nil, true
			}
		}
	}))
	return a.write(a.Messages())
}

// Messages converts the pending state into see messages.
func (a *Adapter) Messages() []Message {
	var out []Message
	if a.initial {
		w, h := a.Config.W/2, a.Config.H/2
		out = []Message{
			{Action: ActionReset},
			{Action: ActionObject, Object: NewObject("corner", "corner-lt").With("loc", "lt").At(-w, -h).Radius(1)},
			{Action: ActionObject, Object: NewObject("corner", "corner-lb").With("loc", "lb").At(-w, h).Radius(1)},
			{Action: ActionObject, Object: NewObject("corner", "corner-rt").With("loc", "rt").At(w, -h).Radius(1)},
			{Action: ActionObject, Object: NewObject("corner", "corner-rb").With("loc", "rb").At(w, h).Radius(1)},
		}
		a.initial = false
	}
	if a.removed {
		for _, id := range []string{IDDirection, IDLeftFoot, IDRightFoot} {
			out = append(out, Message{Action: ActionRemove, RemoveID: id})
		}
		a.removed = false
	}
	if u := a.update; u != nil {
		if obj := a.DirectionObject(u.Direction); obj != nil {
			out = append(out, Message{Action: ActionObject, Object: obj})
		}
		if obj := a.FootObject(IDLeftFoot, -a.Config.W/4, u.Left); obj != nil {
			out = append(out, Message{Action: ActionObject, Object: obj})
		}
		if obj := a.FootObject(IDRightFoot, a.Config.W/4, u.Right); obj != nil {
			out = append(out, Message{Action: ActionObject, Object: obj})
		}
		a.update = nil
	}
	return out
}

// DirectionObject maps the heading to an arrow in the center.
func (a *Adapter) DirectionObject(s *msgs.DirectionState) Object {
	if s == nil {
		return nil
	}
	return NewObject("arrow", IDDirection).
		At(0, 0).
		Radius(math.Min(a.Config.W, a.Config.H) * 0.45 / 2).
		Rotate(s.Angle)
}

// FootObject maps a foot to a dot in its half of the area centered at
// (cx, 0). A foot on ground is drawn larger with opacity from shade.
func (a *Adapter) FootObject(id string, cx float64, s *msgs.FootState) Object {
	if s == nil {
		return nil
	}
	radius, opacity := float64(AirRadius), 1.0
	if s.OnGround {
		radius, opacity = GroundRadius, math.Max(0, math.Min(1, s.Shade))
	}
	return NewObject("foot", id).
		At(cx+a.Config.W/2*s.MoveX*a.Config.FootScale, a.Config.H*s.MoveY*a.Config.FootScale).
		Radius(radius).
		Style(map[string]interface{}{"opacity": opacity})
}

func (a *Adapter) write(out []Message) error {
	if len(out) == 0 {
		return nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Out, string(encoded))
	return err
}
