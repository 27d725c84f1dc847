// Package comm provides L0 protocol support for the KAT Walk C2 treadmill.
package comm

// L0 protocol is communicated between the treadmill receiver and the
// L1 gateway over a pair of USB bulk endpoints. Every frame in either
// direction is exactly 32 bytes and starts with a fixed 5-byte signature.
//
// The link carries no sequence numbers or checksums. The receiver streams
// sample frames as long as streaming is enabled, and the gateway piggybacks
// at most one command frame on each frame it receives. Recovery from a
// misaligned or garbled stream is done by forcing the receiver to stop and
// restart streaming (see Engine.Dispatch).
//
// Producer: treadmill receiver
// Consumer: L1 gateway
