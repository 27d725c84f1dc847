package comm

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/msgs"
)

const groupTest = msgs.GroupCustom | 0x00ff0000

type echoCmd struct {
	Value int32 `protobuf:"varint,1,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *echoCmd) NewMessage() fx.Message { return &echoCmd{} }
func (m *echoCmd) TypeID() uint32 { return groupTest | 0x0001 }
func (m *echoCmd) Serializable() proto.Message { return m }
func (m *echoCmd) ProtoMessage() {}
func (m *echoCmd) Reset() { *m = echoCmd{} }
func (m *echoCmd) String() string { return proto.CompactTextString(m) }
func (m *echoReply) NewMessage() fx.Message { return &echoReply{} }
func (m *echoReply) TypeID() uint32 { return groupTest | msgs.TypeIDMaskReply | 0x0001 }
func (m *echoReply) Serializable() proto.Message { return m }
func (m *echoReply) ProtoMessage() {}
func (m *echoReply) Reset() { *m = echoReply{} }
func (m *echoReply) String() string { return proto.CompactTextString(m) }
func (m *ignoredCmd) NewMessage() fx.Message { return &ignoredCmd{} }
func (m *ignoredCmd) TypeID() uint32 { return groupTest | 0x0002 }
func (m *ignoredCmd) Serializable() proto.Message { return m }
func (m *ignoredCmd) ProtoMessage() {}
func (m *ignoredCmd) Reset() { *m = ignoredCmd{} }
func (m *ignoredCmd) String() string { return proto.CompactTextString(m) }
func (m *unknownCmd) NewMessage() fx.Message { return &unknownCmd{} }
func (m *unknownCmd) TypeID() uint32 { return groupTest | 0x0003 }
func (m *unknownCmd) Serializable() proto.Message { return m }
func (m *unknownCmd) ProtoMessage() {}
func (m *unknownCmd) Reset() { *m = unknownCmd{} }
func (m *unknownCmd) String() string { return proto.CompactTextString(m) }
func (m *pingEvent) NewMessage() fx.Message { return &pingEvent{} }
func (m *pingEvent) TypeID() uint32 { return msgs.TypeIDKindEvent | groupTest | 0x0001 }
func (m *pingEvent) Serializable() proto.Message { return m }
func (m *pingEvent) ProtoMessage() {}
func (m *pingEvent) Reset() { *m = pingEvent{} }
func (m *pingEvent) String() string { return proto.CompactTextString(m) }

type echoReply struct {
	Value int32 `protobuf:"varint,1,opt,name=value,proto3" json:"value,omitempty"`
}

type ignoredCmd struct{}

// unknownCmd is never registered.
type unknownCmd struct{}

type pingEvent struct {
	Seq uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
}

func init() {
	msgs.Register(
		(*echoCmd)(nil),
		(*echoReply)(nil),
		(*ignoredCmd)(nil),
		(*pingEvent)(nil),
	)
}

// memStream is one end of an in-memory packet stream.
type memStream struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once sync.Once
}

func newMemPair() (*memStream, *memStream) {
	a2b, b2a := make(chan []byte, 16), make(chan []byte, 16)
	return &memStream{in: b2a, out: a2b, done: make(chan struct{})},
		&memStream{in: a2b, out: b2a, done: make(chan struct{})}
}

func (s *memStream) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-s.in:
		return pkt, nil
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *memStream) WritePacket(pkt []byte) error {
	select {
	case s.out <- pkt:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *memStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func waitResult(t *testing.T, f l1.CommandFuture) l1.Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("command result timeout")
	}
	return l1.Result{}
}

func echoController(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		if echo, ok := cmdMsg.Command.Msg().(*echoCmd); ok {
			mctx.MessageTaken()
			cmdMsg.Command.Done(&echoReply{Value: echo.Value})
		}
	}))
	return nil
}

func TestRegistrarAndControllerConn(t *testing.T) {
	gwSide, connSide := newMemPair()
	reg := NewRegistrar(gwSide)
	gw := fx.NewLoop()
	gw.Add(reg, &UnsupportedCommands{})
	gw.AddController(fx.PrLvControl, fx.ControlFunc(echoController))

	conn := NewControllerConn(connSide)
	eventCh := make(chan *pingEvent, 1)
	cl := fx.NewLoop()
	cl.Add(conn)
	cl.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			if ev, ok := mctx.CurrentMessage().(*pingEvent); ok {
				mctx.MessageTaken()
				eventCh <- ev
			}
		}))
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gw.Run(ctx)
	go cl.Run(ctx)

	res := waitResult(t, conn.DoCommand(&echoCmd{Value: 42}))
	require.NoError(t, res.Err)
	require.Equal(t, int32(42), res.Msg.(*echoReply).Value)

	res = waitResult(t, conn.DoCommand(&ignoredCmd{}))
	require.EqualError(t, res.Err, msgs.ErrUnsupportedCommand.Error())

	res = waitResult(t, conn.DoCommand(&unknownCmd{}))
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "unknown type")

	require.NoError(t, reg.SendEvent(ctx, &pingEvent{Seq: 3}))
	select {
	case ev := <-eventCh:
		require.Equal(t, uint32(3), ev.Seq)
	case <-time.After(3 * time.Second):
		t.Fatal("event not received")
	}
	require.Zero(t, conn.Pending())
}

func TestControllerConnExpiration(t *testing.T) {
	_, connSide := newMemPair()
	conn := NewControllerConn(connSide)
	now := time.Unix(1000, 0)
	conn.Clock = func() time.Time { return now }
	l := fx.NewLoop()
	l.Clock = conn.Clock
	l.Add(conn)

	f := conn.DoCommand(&echoCmd{Value: 1})
	require.Equal(t, 1, conn.Pending())
	l.RunIteration(context.Background())
	require.Equal(t, 1, conn.Pending())

	now = now.Add(DefaultCommandExpiration)
	l.RunIteration(context.Background())
	res := waitResult(t, f)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Zero(t, conn.Pending())
}

func TestPipeRejectsWrongKind(t *testing.T) {
	a, _ := newMemPair()
	p := NewPipe(a)
	require.Error(t, p.SendEventMsg(&echoCmd{}))
	require.Error(t, p.SendCommandMsg(&pingEvent{}, 1))
	require.NoError(t, p.SendEventMsg(&pingEvent{Seq: 1}))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

type recordingRegistrar struct {
	events []fx.Message
	metas  []l1.ControllerMeta
}

func (r *recordingRegistrar) SendEvent(_ context.Context, msg fx.Message) error {
	r.events = append(r.events, msg)
	return nil
}

func (r *recordingRegistrar) UpdateMeta(_ context.Context, meta l1.ControllerMeta) error {
	r.metas = append(r.metas, meta)
	return nil
}

type plainRegistrar struct {
	err error
}

func (r *plainRegistrar) SendEvent(context.Context, fx.Message) error { return r.err }

func TestRegistrarMux(t *testing.T) {
	rec := &recordingRegistrar{}
	failing := &plainRegistrar{err: io.ErrClosedPipe}
	var mux RegistrarMux
	mux.Add(rec, failing)
	require.Equal(t, 2, mux.Len())

	err := mux.SendEvent(context.Background(), &pingEvent{Seq: 1})
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Len(t, rec.events, 1)

	meta := l1.ControllerMeta{Device: l1.DeviceConnected}
	require.NoError(t, mux.UpdateMeta(context.Background(), meta))
	require.Equal(t, []l1.ControllerMeta{meta}, rec.metas)
}
