// Package msgs provides L1 protocol support and the generic message schemas.
package msgs

// L1 protocol is communicated between the L1 gateway and L2 consumers
// (tools, games, monitors), and carries device state as typed protobuf
// messages. Device specific messages register themselves into
// MessageTypes from their own packages.
//
// Producer: L1 gateway
// Consumer: L2 consumers
