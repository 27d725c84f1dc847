package comm

import (
	"sync"
	"sync/atomic"
)

// MaxBadFrames is the number of consecutive bad frames tolerated before
// the receiver is asked to restart streaming.
const MaxBadFrames = 5

// EngineStats are counters of the Engine.
type EngineStats struct {
	Frames        uint64
	ControlFrames uint64
	BadFrames     uint64
	Resyncs       uint64
	Restarts      uint64
	Replies       uint64
}

// Engine is the protocol state of one device session. It owns the
// sensors and the command queue.
type Engine struct {
	Opcodes Opcodes

	queue     CommandQueue
	sensors   Sensors
	badFrames int
	lock      sync.RWMutex

	frames        atomic.Uint64
	controlFrames atomic.Uint64
	totalBad      atomic.Uint64
	resyncs       atomic.Uint64
	restarts      atomic.Uint64
	replies       atomic.Uint64
}

// NewEngine creates an Engine with DefaultOpcodes.
func NewEngine() *Engine {
	return &Engine{Opcodes: DefaultOpcodes, sensors: NewSensors()}
}

// Enqueue adds a command to be sent on a later frame.
func (e *Engine) Enqueue(cmd Command) {
	e.queue.Push(cmd)
}

// Pending returns the number of queued commands.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Snapshot copies the current sensor state.
func (e *Engine) Snapshot() Sensors {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.sensors
}

// BadFrames returns the current count of consecutive bad frames.
func (e *Engine) BadFrames() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.badFrames
}

// SetAngleZero sets the heading reference in degrees.
func (e *Engine) SetAngleZero(deg float64) {
	e.lock.Lock()
	e.sensors.Direction.AngleZero = deg
	e.lock.Unlock()
}

// ZeroHeading makes the current heading read 0 and returns the new
// reference.
func (e *Engine) ZeroHeading() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.sensors.Direction.AngleZero = e.sensors.Direction.RawAngleDeg()
	return e.sensors.Direction.AngleZero
}

// Restore applies previously known sensor metadata. Only unconfigured
// slots are restored, and the restored id stays provisional until the
// receiver sends a config frame for the slot.
func (e *Engine) Restore(kind SensorKind, info SensorInfo) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if info.ID < 0 {
		return
	}
	if s := e.sensors.Sensor(kind); s != nil && !s.Info().Configured() {
		info.Provisional = true
		*s.Info() = info
	}
}

// Stats returns the counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Frames:        e.frames.Load(),
		ControlFrames: e.controlFrames.Load(),
		BadFrames:     e.totalBad.Load(),
		Resyncs:       e.resyncs.Load(),
		Restarts:      e.restarts.Load(),
		Replies:       e.replies.Load(),
	}
}

// Dispatch processes one inbound frame and returns the updated sensor
// and the frame to send back, if any.
func (e *Engine) Dispatch(b []byte, control bool) (SensorKind, []byte) {
	if control {
		e.controlFrames.Add(1)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if !IsValidFrame(b) {
		return SensorNone, e.recover(b)
	}
	e.frames.Add(1)
	e.badFrames = 0

	var f Frame
	copy(f[:], b)
	kind := SensorNone
	switch f.Opcode() {
	case OpSample:
		if kind = e.sensors.Match(f[6]); kind != SensorNone {
			e.sensors.Sensor(kind).Decode(&f)
		}
	case OpStopConfirm:
		return SensorNone, e.encode(StartStream{})
	case OpConfig:
		if kind = SensorKindFromSelector(f[7]); kind != SensorNone {
			info := e.sensors.Sensor(kind).Info()
			info.Configure(&f)
			e.sensors.releaseProvisional(kind, info.ID)
		}
	case OpStatus:
		// charge status, not applied.
	}
	if cmd := e.queue.Pop(); cmd != nil {
		return kind, e.encode(cmd)
	}
	return kind, nil
}

func (e *Engine) recover(b []byte) []byte {
	e.totalBad.Add(1)
	e.badFrames++
	if len(b) == FrameSize && b[0] == Signature[0] {
		for i := 1; i < FrameSize; i++ {
			j := i + 1
			if j >= FrameSize {
				j = 1
			}
			if b[i] == Signature[1] && b[j] == Signature[2] {
				e.resyncs.Add(1)
				return e.encode(StopStream{})
			}
		}
	}
	if e.badFrames%2 == 1 {
		if cmd := e.queue.Pop(); cmd != nil {
			return e.encode(cmd)
		}
	}
	if e.badFrames > MaxBadFrames {
		e.badFrames = 0
		e.restarts.Add(1)
		return e.encode(StartStream{})
	}
	return nil
}

func (e *Engine) encode(cmd Command) []byte {
	f := cmd.Encode(e.Opcodes)
	e.replies.Add(1)
	return f.Bytes()
}
