package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/robotalks/katwalk/pkg/l1"
)

// ReadWriter implements PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	doneCh    chan struct{}
	closeOnce sync.Once
}

// DefaultPacketBuffer is the number of received packets buffered
// before the subscriber callback blocks.
const DefaultPacketBuffer = 16

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, DefaultPacketBuffer),
		doneCh:   make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForConnector sets topics using default convention for connector:
// SubTopic = prefix/msg
// PubTopic = prefix/cmd
func (p *ReadWriter) ForConnector(ref l1.ControllerRef) *ReadWriter {
	prefix := ref.Name()
	return p.WithTopics(prefix+"/msg", prefix+"/cmd")
}

// ForController sets topics using default convention for L1 gateway:
// SubTopic = prefix/cmd
// PubTopic = prefix/msg
func (p *ReadWriter) ForController(ref l1.ControllerRef) *ReadWriter {
	prefix := ref.Name()
	return p.WithTopics(prefix+"/cmd", prefix+"/msg")
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return WaitToken(p.Queue.Pub(p.PubTopic, pkt), DefaultTokenTimeout)
}

// Close implements io.Closer. Pending ReadPacket returns io.EOF.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.doneCh) })
	return nil
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	defer sub.Close()
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneCh:
		return nil
	}
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	}
}
