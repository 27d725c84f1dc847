package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/l1/msgs"
)

// StatusQuery queries the device status and latest sensor state.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() fx.Message { return &StatusQuery{} }

// TypeID implements SerializableMessage.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// StatusReply is the response for StatusQuery.
type StatusReply struct {
	Status  *DeviceStatus `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
	Sensors *SensorUpdate `protobuf:"bytes,2,opt,name=sensors,proto3" json:"sensors,omitempty"`
}

// NewMessage implements Message.
func (m *StatusReply) NewMessage() fx.Message { return &StatusReply{} }

// TypeID implements SerializableMessage.
func (m *StatusReply) TypeID() uint32 { return StatusReplyTypeID }

// Serializable implements SerializableMessage.
func (m *StatusReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusReply) Reset() { *m = StatusReply{} }

// String implements proto.Message.
func (m *StatusReply) String() string { return proto.CompactTextString(m) }

// SetLED sets the receiver LED brightness, level in [0, 1].
type SetLED struct {
	Level float64 `protobuf:"fixed64,1,opt,name=level,proto3" json:"level,omitempty"`
}

// NewMessage implements Message.
func (m *SetLED) NewMessage() fx.Message { return &SetLED{} }

// TypeID implements SerializableMessage.
func (m *SetLED) TypeID() uint32 { return SetLEDTypeID }

// Serializable implements SerializableMessage.
func (m *SetLED) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SetLED) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetLED) Reset() { *m = SetLED{} }

// String implements proto.Message.
func (m *SetLED) String() string { return proto.CompactTextString(m) }

// StreamControl starts or stops sensor streaming.
type StreamControl struct {
	Start bool `protobuf:"varint,1,opt,name=start,proto3" json:"start,omitempty"`
}

// NewMessage implements Message.
func (m *StreamControl) NewMessage() fx.Message { return &StreamControl{} }

// TypeID implements SerializableMessage.
func (m *StreamControl) TypeID() uint32 { return StreamControlTypeID }

// Serializable implements SerializableMessage.
func (m *StreamControl) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StreamControl) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StreamControl) Reset() { *m = StreamControl{} }

// String implements proto.Message.
func (m *StreamControl) String() string { return proto.CompactTextString(m) }

// SendRaw sends raw bytes in a frame, at most 32 bytes.
type SendRaw struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements Message.
func (m *SendRaw) NewMessage() fx.Message { return &SendRaw{} }

// TypeID implements SerializableMessage.
func (m *SendRaw) TypeID() uint32 { return SendRawTypeID }

// Serializable implements SerializableMessage.
func (m *SendRaw) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SendRaw) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SendRaw) Reset() { *m = SendRaw{} }

// String implements proto.Message.
func (m *SendRaw) String() string { return proto.CompactTextString(m) }

// SetAngleZero sets the heading reference. With Current set, the
// current heading becomes 0 and Degrees is ignored.
type SetAngleZero struct {
	Degrees float64 `protobuf:"fixed64,1,opt,name=degrees,proto3" json:"degrees,omitempty"`
	Current bool    `protobuf:"varint,2,opt,name=current,proto3" json:"current,omitempty"`
}

// NewMessage implements Message.
func (m *SetAngleZero) NewMessage() fx.Message { return &SetAngleZero{} }

// TypeID implements SerializableMessage.
func (m *SetAngleZero) TypeID() uint32 { return SetAngleZeroTypeID }

// Serializable implements SerializableMessage.
func (m *SetAngleZero) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SetAngleZero) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetAngleZero) Reset() { *m = SetAngleZero{} }

// String implements proto.Message.
func (m *SetAngleZero) String() string { return proto.CompactTextString(m) }

// AngleZeroReply is the response for SetAngleZero.
type AngleZeroReply struct {
	Degrees float64 `protobuf:"fixed64,1,opt,name=degrees,proto3" json:"degrees,omitempty"`
}

// NewMessage implements Message.
func (m *AngleZeroReply) NewMessage() fx.Message { return &AngleZeroReply{} }

// TypeID implements SerializableMessage.
func (m *AngleZeroReply) TypeID() uint32 { return AngleZeroReplyTypeID }

// Serializable implements SerializableMessage.
func (m *AngleZeroReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *AngleZeroReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *AngleZeroReply) Reset() { *m = AngleZeroReply{} }

// String implements proto.Message.
func (m *AngleZeroReply) String() string { return proto.CompactTextString(m) }

// SensorUpdate is an Event carrying the sensor state after a frame.
// Kind names the sensor updated by the frame.
type SensorUpdate struct {
	Kind      string          `protobuf:"bytes,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Direction *DirectionState `protobuf:"bytes,2,opt,name=direction,proto3" json:"direction,omitempty"`
	Left      *FootState      `protobuf:"bytes,3,opt,name=left,proto3" json:"left,omitempty"`
	Right     *FootState      `protobuf:"bytes,4,opt,name=right,proto3" json:"right,omitempty"`
}

// NewMessage implements Message.
func (m *SensorUpdate) NewMessage() fx.Message { return &SensorUpdate{} }

// TypeID implements SerializableMessage.
func (m *SensorUpdate) TypeID() uint32 { return SensorUpdateTypeID }

// Serializable implements SerializableMessage.
func (m *SensorUpdate) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SensorUpdate) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SensorUpdate) Reset() { *m = SensorUpdate{} }

// String implements proto.Message.
func (m *SensorUpdate) String() string { return proto.CompactTextString(m) }

// DeviceStatus is an Event reflecting the device connection.
type DeviceStatus struct {
	Connected bool       `protobuf:"varint,1,opt,name=connected,proto3" json:"connected,omitempty"`
	Serial    string     `protobuf:"bytes,2,opt,name=serial,proto3" json:"serial,omitempty"`
	Stats     *LinkStats `protobuf:"bytes,3,opt,name=stats,proto3" json:"stats,omitempty"`
}

// NewMessage implements Message.
func (m *DeviceStatus) NewMessage() fx.Message { return &DeviceStatus{} }

// TypeID implements SerializableMessage.
func (m *DeviceStatus) TypeID() uint32 { return DeviceStatusTypeID }

// Serializable implements SerializableMessage.
func (m *DeviceStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *DeviceStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DeviceStatus) Reset() { *m = DeviceStatus{} }

// String implements proto.Message.
func (m *DeviceStatus) String() string { return proto.CompactTextString(m) }

// DirectionState is the direction sensor state.
type DirectionState struct {
	Info        *SensorInfo `protobuf:"bytes,1,opt,name=info,proto3" json:"info,omitempty"`
	Angle       float64     `protobuf:"fixed64,2,opt,name=angle,proto3" json:"angle,omitempty"`
	Orientation *Quaternion `protobuf:"bytes,3,opt,name=orientation,proto3" json:"orientation,omitempty"`
	AngleZero   float64     `protobuf:"fixed64,4,opt,name=angle_zero,json=angleZero,proto3" json:"angle_zero,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *DirectionState) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DirectionState) Reset() { *m = DirectionState{} }

// String implements proto.Message.
func (m *DirectionState) String() string { return proto.CompactTextString(m) }

// FootState is a foot sensor state.
type FootState struct {
	Info     *SensorInfo `protobuf:"bytes,1,opt,name=info,proto3" json:"info,omitempty"`
	MoveX    float64     `protobuf:"fixed64,2,opt,name=move_x,json=moveX,proto3" json:"move_x,omitempty"`
	MoveY    float64     `protobuf:"fixed64,3,opt,name=move_y,json=moveY,proto3" json:"move_y,omitempty"`
	Shade    float64     `protobuf:"fixed64,4,opt,name=shade,proto3" json:"shade,omitempty"`
	OnGround bool        `protobuf:"varint,5,opt,name=on_ground,json=onGround,proto3" json:"on_ground,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *FootState) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FootState) Reset() { *m = FootState{} }

// String implements proto.Message.
func (m *FootState) String() string { return proto.CompactTextString(m) }

// SensorInfo is the metadata reported by sensor config frames.
type SensorInfo struct {
	ID       int32   `protobuf:"varint,1,opt,name=id,proto3" json:"id"`
	Version  int32   `protobuf:"varint,2,opt,name=version,proto3" json:"version"`
	Charging bool    `protobuf:"varint,3,opt,name=charging,proto3" json:"charging,omitempty"`
	Charge   float64 `protobuf:"fixed64,4,opt,name=charge,proto3" json:"charge,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *SensorInfo) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SensorInfo) Reset() { *m = SensorInfo{} }

// String implements proto.Message.
func (m *SensorInfo) String() string { return proto.CompactTextString(m) }

// Quaternion is an orientation.
type Quaternion struct {
	W float64 `protobuf:"fixed64,1,opt,name=w,proto3" json:"w"`
	X float64 `protobuf:"fixed64,2,opt,name=x,proto3" json:"x"`
	Y float64 `protobuf:"fixed64,3,opt,name=y,proto3" json:"y"`
	Z float64 `protobuf:"fixed64,4,opt,name=z,proto3" json:"z"`
}

// ProtoMessage implements proto.Message.
func (m *Quaternion) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Quaternion) Reset() { *m = Quaternion{} }

// String implements proto.Message.
func (m *Quaternion) String() string { return proto.CompactTextString(m) }

// LinkStats are protocol and transport counters of the device session.
type LinkStats struct {
	Frames          uint64 `protobuf:"varint,1,opt,name=frames,proto3" json:"frames,omitempty"`
	BadFrames       uint64 `protobuf:"varint,2,opt,name=bad_frames,json=badFrames,proto3" json:"bad_frames,omitempty"`
	Resyncs         uint64 `protobuf:"varint,3,opt,name=resyncs,proto3" json:"resyncs,omitempty"`
	Restarts        uint64 `protobuf:"varint,4,opt,name=restarts,proto3" json:"restarts,omitempty"`
	Replies         uint64 `protobuf:"varint,5,opt,name=replies,proto3" json:"replies,omitempty"`
	BytesIn         uint64 `protobuf:"varint,6,opt,name=bytes_in,json=bytesIn,proto3" json:"bytes_in,omitempty"`
	ReadErrors      uint64 `protobuf:"varint,7,opt,name=read_errors,json=readErrors,proto3" json:"read_errors,omitempty"`
	WriteErrors     uint64 `protobuf:"varint,8,opt,name=write_errors,json=writeErrors,proto3" json:"write_errors,omitempty"`
	DroppedUpdates  uint64 `protobuf:"varint,9,opt,name=dropped_updates,json=droppedUpdates,proto3" json:"dropped_updates,omitempty"`
	PendingCommands uint32 `protobuf:"varint,10,opt,name=pending_commands,json=pendingCommands,proto3" json:"pending_commands,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStats) Reset() { *m = LinkStats{} }

// String implements proto.Message.
func (m *LinkStats) String() string { return proto.CompactTextString(m) }

// GroupKatWalk defines the custom group.
const GroupKatWalk = msgs.GroupCustom | 0x00010000

// TypeIDs
const (
	SensorUpdateTypeID   uint32 = GroupKatWalk | msgs.TypeIDKindEvent | 0x0000
	DeviceStatusTypeID   uint32 = GroupKatWalk | msgs.TypeIDKindEvent | 0x0001
	StatusQueryTypeID    uint32 = GroupKatWalk | 0x0000
	StatusReplyTypeID    uint32 = GroupKatWalk | msgs.TypeIDMaskReply | 0x0000
	SetLEDTypeID         uint32 = GroupKatWalk | 0x0001
	StreamControlTypeID  uint32 = GroupKatWalk | 0x0002
	SendRawTypeID        uint32 = GroupKatWalk | 0x0003
	SetAngleZeroTypeID   uint32 = GroupKatWalk | 0x0004
	AngleZeroReplyTypeID uint32 = GroupKatWalk | msgs.TypeIDMaskReply | 0x0004
)

func init() {
	msgs.Register(
		(*SensorUpdate)(nil),
		(*DeviceStatus)(nil),
		(*StatusQuery)(nil),
		(*StatusReply)(nil),
		(*SetLED)(nil),
		(*StreamControl)(nil),
		(*SendRaw)(nil),
		(*SetAngleZero)(nil),
		(*AngleZeroReply)(nil),
	)
}
