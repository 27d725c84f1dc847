// Package comm implements the transport neutral parts of the L1
// protocol: a Pipe exchanging Typed messages over packets, the gateway
// side Registrar and the consumer side ControllerConn.
package comm

import "errors"

// ErrClosed indicates the packet stream has been closed.
var ErrClosed = errors.New("packet stream closed")

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}
