package comm

import (
	"fmt"
	"math"
)

// SensorKind identifies a sensor slot.
type SensorKind int

// Sensor kinds.
const (
	SensorNone SensorKind = iota
	SensorDirection
	SensorLeftFoot
	SensorRightFoot
)

var sensorKindNames = [...]string{"none", "direction", "left-foot", "right-foot"}

func (k SensorKind) String() string {
	if k >= 0 && int(k) < len(sensorKindNames) {
		return sensorKindNames[k]
	}
	return fmt.Sprintf("SensorKind(%d)", int(k))
}

// SensorKindFromSelector maps the sensor type selector in a config
// frame to a SensorKind.
func SensorKindFromSelector(sel byte) SensorKind {
	switch sel {
	case 1:
		return SensorDirection
	case 2:
		return SensorLeftFoot
	case 3:
		return SensorRightFoot
	}
	return SensorNone
}

const (
	fixed15    = 1.0 / 32768
	moveScale  = 59055.117
	shadeScale = 127
)

// SensorInfo is the metadata of a sensor populated by config frames.
type SensorInfo struct {
	// ID is the sensor id in streaming frames, -1 until configured.
	ID       int
	Version  int
	Charging bool
	Charge   float64
	// Provisional marks metadata restored from a previous session and
	// not yet confirmed by a config frame.
	Provisional bool
}

// Configured indicates a config frame has been received.
func (s *SensorInfo) Configured() bool {
	return s.ID >= 0
}

// Matches checks if id in a streaming frame belongs to this sensor.
func (s *SensorInfo) Matches(id byte) bool {
	return s.ID >= 0 && s.ID == int(id)
}

// Configure applies a config frame. The sensor id is only taken from
// the first config frame, a provisional id is always replaced.
func (s *SensorInfo) Configure(f *Frame) {
	s.Version = int(f[11])
	s.Charge = float64(Decode16(f[:], 9))
	s.Charging = int8(f[8]) > 0
	if s.ID < 0 || s.Provisional {
		s.ID = int(f[6])
		s.Provisional = false
	}
}

// Sensor is implemented by DirectionSensor and FootSensor.
type Sensor interface {
	Info() *SensorInfo
	Decode(f *Frame)
}

// Quaternion is an orientation.
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion returns the quaternion with no rotation.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Normalized returns the unit quaternion, zero vector maps to identity.
func (q Quaternion) Normalized() Quaternion {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return IdentityQuaternion()
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// YawDeg extracts the yaw angle in degrees, in (-180, 180].
func (q Quaternion) YawDeg() float64 {
	return math.Atan2(2*(q.W*q.Y-q.X*q.Z), q.W*q.W+q.X*q.X-q.Y*q.Y-q.Z*q.Z) * 180 / math.Pi
}

// NormalizeDeg maps an angle into [0, 360).
func NormalizeDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// DirectionSensor reports body orientation.
type DirectionSensor struct {
	SensorInfo
	Orientation Quaternion
	// AngleZero is subtracted from the yaw, set when the receiver
	// flags a calibration.
	AngleZero float64
}

// Info implements Sensor.
func (s *DirectionSensor) Info() *SensorInfo {
	return &s.SensorInfo
}

// Decode implements Sensor.
func (s *DirectionSensor) Decode(f *Frame) {
	q1 := float64(Decode16(f[:], 7))
	q2 := float64(Decode16(f[:], 9))
	q3 := float64(Decode16(f[:], 11))
	q4 := float64(Decode16(f[:], 13))
	s.Orientation = Quaternion{
		X: (q1 - q2 - q3 + q4) * fixed15,
		Y: (-q1 - q2 + q3 + q4) * fixed15,
		Z: (q1 + q2 + q3 + q4) * fixed15,
		W: (q1 - q2 + q3 - q4) * fixed15,
	}.Normalized()
	if f[25]&0x80 != 0 {
		s.AngleZero = s.RawAngleDeg()
	}
}

// RawAngleDeg is the yaw before applying AngleZero.
func (s *DirectionSensor) RawAngleDeg() float64 {
	return s.Orientation.YawDeg()
}

// AngleDeg is the heading in [0, 360).
func (s *DirectionSensor) AngleDeg() float64 {
	return NormalizeDeg(s.RawAngleDeg() - s.AngleZero)
}

// FootSensor reports foot movement.
type FootSensor struct {
	SensorInfo
	MoveX    float64
	MoveY    float64
	Shade    float64
	OnGround bool
}

// Info implements Sensor.
func (s *FootSensor) Info() *SensorInfo {
	return &s.SensorInfo
}

// Decode implements Sensor.
func (s *FootSensor) Decode(f *Frame) {
	s.MoveX = float64(Decode16(f[:], 21)) / moveScale
	s.MoveY = float64(Decode16(f[:], 23)) / moveScale
	s.Shade = float64(int8(f[26])) / shadeScale
	s.OnGround = f[9] == 0
}

// Sensors holds the three sensor slots. It's a value type, a copy is a
// snapshot.
type Sensors struct {
	Direction DirectionSensor
	LeftFoot  FootSensor
	RightFoot FootSensor
}

// NewSensors creates unconfigured sensors.
func NewSensors() Sensors {
	s := Sensors{}
	s.Direction.ID, s.Direction.Version = -1, -1
	s.Direction.Orientation = IdentityQuaternion()
	s.LeftFoot.ID, s.LeftFoot.Version = -1, -1
	s.RightFoot.ID, s.RightFoot.Version = -1, -1
	return s
}

// Sensor returns the sensor of kind, nil for SensorNone.
func (s *Sensors) Sensor(kind SensorKind) Sensor {
	switch kind {
	case SensorDirection:
		return &s.Direction
	case SensorLeftFoot:
		return &s.LeftFoot
	case SensorRightFoot:
		return &s.RightFoot
	}
	return nil
}

// Match finds the sensor owning the streaming id.
func (s *Sensors) Match(id byte) SensorKind {
	switch {
	case s.Direction.Matches(id):
		return SensorDirection
	case s.LeftFoot.Matches(id):
		return SensorLeftFoot
	case s.RightFoot.Matches(id):
		return SensorRightFoot
	}
	return SensorNone
}

// releaseProvisional unassigns provisional ids equal to id held by
// slots other than kind.
func (s *Sensors) releaseProvisional(kind SensorKind, id int) {
	for _, k := range []SensorKind{SensorDirection, SensorLeftFoot, SensorRightFoot} {
		if k == kind {
			continue
		}
		if info := s.Sensor(k).Info(); info.Provisional && info.ID == id {
			info.ID, info.Provisional = -1, false
		}
	}
}

// Update is the notification after a frame updated a sensor.
type Update struct {
	Kind    SensorKind
	Sensors Sensors
}

// DirectionAngleDeg is a shortcut to the heading.
func (u *Update) DirectionAngleDeg() float64 {
	return u.Sensors.Direction.AngleDeg()
}
