package msgs

import (
	"github.com/robotalks/katwalk/pkg/l0/comm"
)

// SensorInfoFrom converts comm.SensorInfo.
func SensorInfoFrom(info *comm.SensorInfo) *SensorInfo {
	return &SensorInfo{
		ID:       int32(info.ID),
		Version:  int32(info.Version),
		Charging: info.Charging,
		Charge:   info.Charge,
	}
}

// DirectionStateFrom converts comm.DirectionSensor.
func DirectionStateFrom(s *comm.DirectionSensor) *DirectionState {
	q := s.Orientation
	return &DirectionState{
		Info:        SensorInfoFrom(&s.SensorInfo),
		Angle:       s.AngleDeg(),
		Orientation: &Quaternion{W: q.W, X: q.X, Y: q.Y, Z: q.Z},
		AngleZero:   s.AngleZero,
	}
}

// FootStateFrom converts comm.FootSensor.
func FootStateFrom(s *comm.FootSensor) *FootState {
	return &FootState{
		Info:     SensorInfoFrom(&s.SensorInfo),
		MoveX:    s.MoveX,
		MoveY:    s.MoveY,
		Shade:    s.Shade,
		OnGround: s.OnGround,
	}
}

// SensorUpdateFrom converts a sensor snapshot.
func SensorUpdateFrom(kind comm.SensorKind, sensors *comm.Sensors) *SensorUpdate {
	return &SensorUpdate{
		Kind:      kind.String(),
		Direction: DirectionStateFrom(&sensors.Direction),
		Left:      FootStateFrom(&sensors.LeftFoot),
		Right:     FootStateFrom(&sensors.RightFoot),
	}
}

// LinkStatsFrom merges the engine and link counters.
func LinkStatsFrom(engine comm.EngineStats, link comm.LinkStats) *LinkStats {
	return &LinkStats{
		Frames:      engine.Frames,
		BadFrames:   engine.BadFrames,
		Resyncs:     engine.Resyncs,
		Restarts:    engine.Restarts,
		Replies:     engine.Replies,
		BytesIn:     link.BytesIn,
		ReadErrors:  link.ReadErrors,
		WriteErrors: link.WriteErrors,
	}
}

// ToInfo converts back to comm.SensorInfo.
func (m *SensorInfo) ToInfo() comm.SensorInfo {
	return comm.SensorInfo{
		ID:       int(m.ID),
		Version:  int(m.Version),
		Charging: m.Charging,
		Charge:   m.Charge,
	}
}
