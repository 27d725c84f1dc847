package comm

import (
	"fmt"
	"math"
)

// FrameSize is the size of every frame in both directions.
const FrameSize = 32

// Signature is the fixed header of every frame.
var Signature = [...]byte{0x1f, 0x55, 0xaa, 0x00, 0x00}

// Inbound opcodes at byte 5.
const (
	OpSample      byte = 0x30
	OpStopConfirm byte = 0x31
	OpConfig      byte = 0x32
	OpStatus      byte = 0x33
)

// Opcodes defines the outbound opcodes, as receiver firmware revisions
// disagree on which of 0x30/0x31 starts the stream.
type Opcodes struct {
	StartStream byte
	StopStream  byte
	SetParam    byte
}

// DefaultOpcodes are the opcodes used by current receiver firmware.
var DefaultOpcodes = Opcodes{
	StartStream: 0x31,
	StopStream:  0x30,
	SetParam:    0xa1,
}

// Parameter ids used with Opcodes.SetParam.
const (
	ParamLED byte = 0x01
)

// Frame is a single 32-byte frame.
type Frame [FrameSize]byte

// NewFrame creates a frame with signature and opcode filled.
func NewFrame(opcode byte) (f Frame) {
	copy(f[:], Signature[:])
	f[len(Signature)] = opcode
	return
}

// Bytes returns the frame as a slice.
func (f *Frame) Bytes() []byte {
	return f[:]
}

// IsValid checks the signature.
func (f *Frame) IsValid() bool {
	return IsValidFrame(f[:])
}

// Opcode returns byte 5.
func (f *Frame) Opcode() byte {
	return f[5]
}

// IsValidFrame checks if b starts with the frame signature.
func IsValidFrame(b []byte) bool {
	if len(b) < len(Signature) {
		return false
	}
	for i, s := range Signature {
		if b[i] != s {
			return false
		}
	}
	return true
}

// Decode16 decodes a little-endian 16-bit field at offset, the high byte
// is sign-extended.
func Decode16(b []byte, offset int) int {
	return int(b[offset]) + int(int8(b[offset+1]))<<8
}

// PutUint16MSB writes v at offset in big-endian order.
func PutUint16MSB(b []byte, offset int, v uint16) {
	b[offset], b[offset+1] = byte(v>>8), byte(v)
}

// Uint16MSB reads a big-endian 16-bit value at offset.
func Uint16MSB(b []byte, offset int) uint16 {
	return uint16(b[offset])<<8 | uint16(b[offset+1])
}

// Command is an outbound command.
type Command interface {
	Encode(ops Opcodes) Frame
}

// SetLED sets the LED brightness, Level is in [0, 1].
type SetLED struct {
	Level float64
}

// Encode implements Command.
func (c SetLED) Encode(ops Opcodes) Frame {
	f := NewFrame(ops.SetParam)
	f[6], f[7] = ParamLED, 2
	PutUint16MSB(f[:], 8, LEDValue(c.Level))
	return f
}

func (c SetLED) String() string {
	return fmt.Sprintf("SetLED(%.3f)", c.Level)
}

// LEDValue converts a level to the value on wire, level is clamped to [0, 1].
func LEDValue(level float64) uint16 {
	switch {
	case math.IsNaN(level) || level < 0:
		level = 0
	case level > 1:
		level = 1
	}
	return uint16(math.Round(level * 1000))
}

// StartStream asks the receiver to start streaming.
type StartStream struct{}

// Encode implements Command.
func (StartStream) Encode(ops Opcodes) Frame {
	return NewFrame(ops.StartStream)
}

func (StartStream) String() string {
	return "StartStream"
}

// StopStream asks the receiver to stop streaming.
type StopStream struct{}

// Encode implements Command.
func (StopStream) Encode(ops Opcodes) Frame {
	return NewFrame(ops.StopStream)
}

func (StopStream) String() string {
	return "StopStream"
}

// Raw sends bytes as-is. Bytes not provided keep the header-filled frame.
type Raw struct {
	data []byte
}

// NewRaw creates a Raw command, data can't exceed FrameSize.
func NewRaw(data []byte) (Raw, error) {
	if len(data) > FrameSize {
		return Raw{}, ErrFrameTooLong
	}
	return Raw{data: append([]byte(nil), data...)}, nil
}

// Encode implements Command.
func (c Raw) Encode(Opcodes) Frame {
	f := NewFrame(0)
	copy(f[:], c.data)
	return f
}

func (c Raw) String() string {
	return fmt.Sprintf("Raw(% x)", c.data)
}

// Encode encodes cmd using DefaultOpcodes.
func Encode(cmd Command) Frame {
	return cmd.Encode(DefaultOpcodes)
}
