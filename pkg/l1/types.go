package l1

import (
	"context"

	fx "github.com/robotalks/katwalk/pkg/framework"
)

// Registrar registers an L1 gateway to a registry. It integrates with
// framework and posts received commands into the loop.
type Registrar interface {
	// SendEvent sends an event to L2.
	SendEvent(context.Context, fx.Message) error
}

// MetaUpdater is implemented by registrars which publish metadata,
// e.g. device presence.
type MetaUpdater interface {
	UpdateMeta(context.Context, ControllerMeta) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// ControllerRef is a reference to an L1 gateway.
type ControllerRef struct {
	// Type is the gateway type, e.g. katwalk.
	Type string
	// ID is unique ID of the gateway, default to machine id.
	ID string
}

// Name retrieves the name from ref.
func (r ControllerRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates ControllerRef is valid.
func (r ControllerRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// Device states in ControllerMeta.
const (
	DeviceDetecting = "detecting"
	DeviceConnected = "connected"
)

// ControllerMeta provides metadata for L1 gateway.
type ControllerMeta struct {
	Description string            `json:"description,omitempty"`
	Device      string            `json:"device,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ControllerInfo provides information of an L1 gateway.
type ControllerInfo struct {
	Ref  ControllerRef
	Meta ControllerMeta
}

// Connector is used by L2 components to connect to an L1 gateway.
type Connector interface {
	// Discover enumerates registered gateways.
	Discover(context.Context) ([]ControllerInfo, error)
	// Connect connects to the specified gateway.
	Connect(context.Context, ControllerRef) (ControllerConn, error)
}

// ControllerConn is the connection to a gateway.
type ControllerConn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}
