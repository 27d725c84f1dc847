package comm

import (
	"context"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/msgs"
)

// Registrar implements l1.Registrar with Pipe and integrated with Loop.
// Received commands are posted to the loop as l1.CommandMsg.
type Registrar struct {
	pipe Pipe
}

// NewRegistrar creates a Registrar over rw.
func NewRegistrar(rw PacketReadWriter) *Registrar {
	r := &Registrar{}
	r.Init(rw)
	return r
}

// Init initializes the Registrar with defaults.
func (r *Registrar) Init(rw PacketReadWriter) {
	r.pipe.ReadWriter = rw
	r.pipe.Handler = msgs.HandleTypedMsgFunc(r.handleTypedMsg)
}

func (r *Registrar) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	switch {
	case typed.IsReply():
		// a gateway never issues commands.
	case typed.IsCommand():
		loopCtl.Notify(&l1.CommandMsg{Command: &command{seq: typed.Sequence, msg: msg, pipe: &r.pipe}})
	default:
		loopCtl.Notify(msg)
	}
	return nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.pipe.SendEventMsg(msg)
}

// Run implements Runnable for registrars not added to a loop directly.
// ctx must carry a LoopControl.
func (r *Registrar) Run(ctx context.Context) error {
	return r.pipe.Run(ctx)
}

// Close closes the underlying packet stream.
func (r *Registrar) Close() error {
	return r.pipe.Close()
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.pipe)
}

type command struct {
	seq  uint32
	msg  fx.Message
	pipe *Pipe
}

func (c *command) Msg() fx.Message {
	return c.msg
}

func (c *command) Done(msg fx.Message) error {
	return c.pipe.SendCommandMsg(msg, c.seq)
}

// RegistrarMux registers L1 gateway with multiple Registrars.
type RegistrarMux struct {
	Registrars []l1.Registrar
}

// SendEvent implements Registrar.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// UpdateMeta implements MetaUpdater by forwarding to the registrars
// supporting it.
func (r *RegistrarMux) UpdateMeta(ctx context.Context, meta l1.ControllerMeta) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		if updater, ok := reg.(l1.MetaUpdater); ok {
			errs.Add(updater.UpdateMeta(ctx, meta))
		}
	}
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (r *RegistrarMux) AddToLoop(l *fx.Loop) {
	for _, reg := range r.Registrars {
		if adder, ok := reg.(fx.LoopAdder); ok {
			l.Add(adder)
		}
	}
}

// Add adds more registrars.
func (r *RegistrarMux) Add(regs ...l1.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// Len returns the number of registrars.
func (r *RegistrarMux) Len() int {
	return len(r.Registrars)
}

// UnsupportedCommands replies left-over commands as unsupported.
type UnsupportedCommands struct {
}

// Control implements Controller.
func (c *UnsupportedCommands) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg); ok {
			mctx.MessageTaken()
			errs.Add(cmdMsg.Command.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand)))
		}
	}))
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (c *UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}
