package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm"
)

// Registrar implements l1.Registrar using MQTT. The gateway metadata is
// published retained on TYPE/ID/meta and cleared on exit, or by the
// broker through the will message.
type Registrar struct {
	Queue *Queue
	Ref   l1.ControllerRef

	metaLock  sync.Mutex
	metaJSON  []byte
	registrar comm.Registrar
}

// NewRegistrar creates a Registrar.
func NewRegistrar(brokerURL string, info l1.ControllerInfo) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+metaTopic(info.Ref), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("katwalk:" + info.Ref.Name())
	}
	r := &Registrar{
		Queue:    NewQueue(opts, topicPrefix),
		Ref:      info.Ref,
		metaJSON: meta,
	}
	r.Queue.OnConnect = func(*Queue) { r.publishMeta() }
	r.registrar.Init(NewPacketReadWriter(r.Queue).ForController(info.Ref))
	return r, nil
}

func metaTopic(ref l1.ControllerRef) string {
	return ref.Name() + "/meta"
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	if !r.Queue.IsConnected() {
		// events are not buffered while the broker is away.
		return nil
	}
	return r.registrar.SendEvent(ctx, msg)
}

// UpdateMeta implements MetaUpdater.
func (r *Registrar) UpdateMeta(ctx context.Context, meta l1.ControllerMeta) error {
	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	r.metaLock.Lock()
	r.metaJSON = data
	r.metaLock.Unlock()
	if r.Queue.IsConnected() {
		return r.publishMeta()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.registrar)
	loop.AddRunnable(r)
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if err := r.Queue.ConnectAndWait(); err != nil {
		// auto reconnect keeps trying in background.
		glog.Warningf("mqtt connect: %v", err)
	}
	<-ctx.Done()
	r.Queue.PubWith(metaTopic(r.Ref), nil, 1, true)
	r.Queue.Close()
	return ctx.Err()
}

func (r *Registrar) publishMeta() error {
	r.metaLock.Lock()
	meta := r.metaJSON
	r.metaLock.Unlock()
	return WaitToken(r.Queue.PubWith(metaTopic(r.Ref), meta, 1, true), DefaultTokenTimeout)
}
