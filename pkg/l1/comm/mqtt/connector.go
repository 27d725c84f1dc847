package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/katwalk/pkg/l1"
	"github.com/robotalks/katwalk/pkg/l1/comm"
)

// Connector implements l1.Connector using MQTT.
type Connector struct {
	DiscoverTimeout time.Duration

	options     *paho.ClientOptions
	topicPrefix string
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		options:         opts,
		topicPrefix:     topicPrefix,
	}, nil
}

// ParseMetaTopic extracts the gateway ref from a TYPE/ID/meta topic.
func ParseMetaTopic(topic string) (ref l1.ControllerRef, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[2] != "meta" {
		return ref, false
	}
	ref.Type, ref.ID = items[0], items[1]
	return ref, ref.IsValid()
}

// Discover implements Connector by collecting retained meta messages.
func (c *Connector) Discover(ctx context.Context) (res []l1.ControllerInfo, err error) {
	q := NewQueue(c.options, c.topicPrefix)
	if err = q.ConnectAndWait(); err != nil {
		return nil, err
	}
	defer q.Close()
	resCh := make(chan l1.ControllerInfo, 1)
	q.Sub("+/+/meta", Handler(func(topic string, payload []byte) {
		ref, ok := ParseMetaTopic(topic)
		// an empty retained payload means the gateway is gone.
		if !ok || len(payload) == 0 {
			return
		}
		info := l1.ControllerInfo{Ref: ref}
		if err := json.Unmarshal(payload, &info.Meta); err != nil {
			glog.Warningf("%s: invalid meta: %v", topic, err)
		}
		select {
		case resCh <- info:
		case <-time.After(time.Second):
		}
	}))

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-timeout:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	conn := &ControllerConn{
		Queue: NewQueue(c.options, c.topicPrefix),
	}
	conn.Init(NewPacketReadWriter(conn.Queue).ForConnector(ref))
	if err := conn.Queue.ConnectAndWait(); err != nil {
		return nil, err
	}
	return conn, nil
}

// ControllerConn implements ControllerConn using MQTT.
type ControllerConn struct {
	comm.ControllerConn
	Queue *Queue
}

// Close disconnects from the broker.
func (c *ControllerConn) Close() error {
	c.ControllerConn.Close()
	return c.Queue.Close()
}
