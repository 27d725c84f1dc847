package comm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func configFrame(id, sel byte) []byte {
	f := NewFrame(OpConfig)
	f[6], f[7], f[11] = id, sel, 1
	return f[:]
}

func sampleFrame(id byte) []byte {
	f := directionFrame(id, 0, -8192, 8192, 0)
	put16(&f, 21, 1000)
	return f[:]
}

func garbageFrame() []byte {
	return make([]byte, FrameSize)
}

func frameOf(cmd Command) []byte {
	f := Encode(cmd)
	return f[:]
}

func TestEngineSample(t *testing.T) {
	e := NewEngine()
	kind, out := e.Dispatch(configFrame(7, 1), false)
	require.Equal(t, SensorDirection, kind)
	require.Nil(t, out)
	kind, out = e.Dispatch(configFrame(9, 3), false)
	require.Equal(t, SensorRightFoot, kind)
	require.Nil(t, out)

	kind, out = e.Dispatch(sampleFrame(7), false)
	require.Equal(t, SensorDirection, kind)
	require.Nil(t, out)
	s := e.Snapshot()
	require.InDelta(t, 90, s.Direction.AngleDeg(), 1e-9)
	require.Zero(t, s.RightFoot.MoveX)

	kind, _ = e.Dispatch(sampleFrame(9), false)
	require.Equal(t, SensorRightFoot, kind)
	s = e.Snapshot()
	require.InDelta(t, 1000/59055.117, s.RightFoot.MoveX, 1e-9)
}

func TestEngineUnmatchedSample(t *testing.T) {
	e := NewEngine()
	before := e.Snapshot()
	kind, out := e.Dispatch(sampleFrame(7), false)
	require.Equal(t, SensorNone, kind)
	require.Nil(t, out)
	require.Equal(t, before, e.Snapshot())

	e.Dispatch(configFrame(7, 1), false)
	before = e.Snapshot()
	kind, _ = e.Dispatch(sampleFrame(8), false)
	require.Equal(t, SensorNone, kind)
	require.Equal(t, before, e.Snapshot())
}

func TestEngineStopConfirm(t *testing.T) {
	e := NewEngine()
	e.Enqueue(SetLED{Level: 1})
	stopped := NewFrame(OpStopConfirm)
	kind, out := e.Dispatch(stopped[:], false)
	require.Equal(t, SensorNone, kind)
	require.Equal(t, frameOf(StartStream{}), out)
	require.Equal(t, 1, e.Pending())
}

func TestEngineStatusAndUnknown(t *testing.T) {
	e := NewEngine()
	e.Enqueue(StopStream{})
	status := NewFrame(OpStatus)
	status[6], status[7] = 7, 1
	kind, out := e.Dispatch(status[:], false)
	require.Equal(t, SensorNone, kind)
	require.Equal(t, frameOf(StopStream{}), out)
	require.Equal(t, NewSensors(), e.Snapshot())

	unknown := NewFrame(0x7e)
	kind, out = e.Dispatch(unknown[:], false)
	require.Equal(t, SensorNone, kind)
	require.Nil(t, out)
}

func TestEngineConfigSelector(t *testing.T) {
	e := NewEngine()
	kind, _ := e.Dispatch(configFrame(7, 0), false)
	require.Equal(t, SensorNone, kind)
	kind, _ = e.Dispatch(configFrame(7, 4), false)
	require.Equal(t, SensorNone, kind)
	require.Equal(t, NewSensors(), e.Snapshot())
}

func TestEngineOneCommandPerFrame(t *testing.T) {
	e := NewEngine()
	e.Enqueue(SetLED{Level: 0.1})
	e.Enqueue(StopStream{})
	status := NewFrame(OpStatus)
	_, out := e.Dispatch(status[:], false)
	require.Equal(t, frameOf(SetLED{Level: 0.1}), out)
	_, out = e.Dispatch(status[:], false)
	require.Equal(t, frameOf(StopStream{}), out)
	_, out = e.Dispatch(status[:], false)
	require.Nil(t, out)
}

func TestEngineRestartAfterBadFrames(t *testing.T) {
	e := NewEngine()
	for i := 1; i <= MaxBadFrames; i++ {
		kind, out := e.Dispatch(garbageFrame(), false)
		require.Equal(t, SensorNone, kind)
		require.Nilf(t, out, "frame %d", i)
		require.Equal(t, i, e.BadFrames())
	}
	_, out := e.Dispatch(garbageFrame(), false)
	require.Equal(t, frameOf(StartStream{}), out)
	require.Zero(t, e.BadFrames())

	_, out = e.Dispatch(garbageFrame(), false)
	require.Nil(t, out)
	require.Equal(t, 1, e.BadFrames())

	stats := e.Stats()
	require.Equal(t, uint64(MaxBadFrames+2), stats.BadFrames)
	require.Equal(t, uint64(1), stats.Restarts)
}

func TestEngineResetOnValidFrame(t *testing.T) {
	e := NewEngine()
	for i := 0; i < MaxBadFrames; i++ {
		e.Dispatch(garbageFrame(), false)
	}
	require.Equal(t, MaxBadFrames, e.BadFrames())
	status := NewFrame(OpStatus)
	e.Dispatch(status[:], false)
	require.Zero(t, e.BadFrames())
	for i := 0; i < MaxBadFrames; i++ {
		_, out := e.Dispatch(garbageFrame(), false)
		require.Nil(t, out)
	}
}

func TestEngineResync(t *testing.T) {
	testCases := []struct {
		name   string
		frame  func() []byte
		expect []byte
	}{
		{
			name: "shifted header",
			frame: func() []byte {
				b := garbageFrame()
				copy(b, []byte{0x1f, 0x00, 0x55, 0xaa, 0x00, 0x00})
				return b
			},
			expect: frameOf(StopStream{}),
		},
		{
			name: "wrapped pair",
			frame: func() []byte {
				b := garbageFrame()
				b[0], b[31], b[1] = 0x1f, 0x55, 0xaa
				return b
			},
			expect: frameOf(StopStream{}),
		},
		{
			name: "short frame",
			frame: func() []byte {
				return []byte{0x1f, 0x00, 0x55, 0xaa, 0x00, 0x00}
			},
		},
		{
			name: "no leading byte",
			frame: func() []byte {
				b := garbageFrame()
				copy(b, []byte{0x00, 0x1f, 0x55, 0xaa, 0x00, 0x00})
				return b
			},
		},
		{
			name: "reversed pair",
			frame: func() []byte {
				b := garbageFrame()
				copy(b, []byte{0x1f, 0x00, 0xaa, 0x55, 0x00, 0x00})
				return b
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine()
			kind, out := e.Dispatch(tc.frame(), false)
			require.Equal(t, SensorNone, kind)
			require.Equal(t, tc.expect, out)
			require.Equal(t, 1, e.BadFrames())
		})
	}
}

func TestEngineSendOnOddBadFrames(t *testing.T) {
	e := NewEngine()
	e.Enqueue(SetLED{Level: 0.2})
	e.Enqueue(SetLED{Level: 0.3})
	_, out := e.Dispatch(garbageFrame(), false)
	require.Equal(t, frameOf(SetLED{Level: 0.2}), out)
	_, out = e.Dispatch(garbageFrame(), false)
	require.Nil(t, out)
	_, out = e.Dispatch(garbageFrame(), false)
	require.Equal(t, frameOf(SetLED{Level: 0.3}), out)
	require.Zero(t, e.Pending())
}

func TestEngineShortValidFrame(t *testing.T) {
	e := NewEngine()
	e.Dispatch(configFrame(7, 1), false)
	kind, out := e.Dispatch([]byte{0x1f, 0x55, 0xaa, 0x00, 0x00, 0x30, 0x07}, true)
	require.Equal(t, SensorDirection, kind)
	require.Nil(t, out)
	require.Equal(t, IdentityQuaternion(), e.Snapshot().Direction.Orientation)

	kind, _ = e.Dispatch([]byte{0x1f, 0x55, 0xaa, 0x00, 0x00}, false)
	require.Equal(t, SensorNone, kind)
	require.Equal(t, uint64(1), e.Stats().ControlFrames)
}

func TestEngineLEDScenario(t *testing.T) {
	e := NewEngine()
	e.Dispatch(configFrame(7, 1), false)
	e.Enqueue(SetLED{Level: 0.5})
	kind, out := e.Dispatch(sampleFrame(7), false)
	require.Equal(t, SensorDirection, kind)
	require.Equal(t, frameOf(SetLED{Level: 0.5}), out)
	require.Equal(t, []byte{0x01, 0xf4}, out[8:10])
}

func TestEngineOpcodes(t *testing.T) {
	e := NewEngine()
	e.Opcodes = Opcodes{StartStream: 0x30, StopStream: 0x31, SetParam: 0xa1}
	stopped := NewFrame(OpStopConfirm)
	_, out := e.Dispatch(stopped[:], false)
	require.Equal(t, byte(0x30), out[5])
}

func TestEngineAngleZero(t *testing.T) {
	e := NewEngine()
	e.Dispatch(configFrame(7, 1), false)
	e.Dispatch(sampleFrame(7), false)
	require.InDelta(t, 90, e.ZeroHeading(), 1e-9)
	s := e.Snapshot()
	require.InDelta(t, 0, s.Direction.AngleDeg(), 1e-9)
	e.SetAngleZero(45)
	s = e.Snapshot()
	require.InDelta(t, 45, s.Direction.AngleDeg(), 1e-9)
}

func TestEngineRestore(t *testing.T) {
	e := NewEngine()
	e.Restore(SensorLeftFoot, SensorInfo{ID: 3, Version: 2})
	kind, _ := e.Dispatch(sampleFrame(3), false)
	require.Equal(t, SensorLeftFoot, kind)
	s := e.Snapshot()
	require.True(t, s.LeftFoot.Provisional)

	e.Restore(SensorLeftFoot, SensorInfo{ID: 4})
	require.Equal(t, 3, e.Snapshot().LeftFoot.ID)
	e.Restore(SensorNone, SensorInfo{ID: 4})
	e.Restore(SensorRightFoot, SensorInfo{ID: -1})
	require.Equal(t, -1, e.Snapshot().RightFoot.ID)

	// a config frame replaces the restored id.
	e.Dispatch(configFrame(5, 2), false)
	s = e.Snapshot()
	require.Equal(t, 5, s.LeftFoot.ID)
	require.False(t, s.LeftFoot.Provisional)
	kind, _ = e.Dispatch(sampleFrame(3), false)
	require.Equal(t, SensorNone, kind)
}

func TestEngineRestoreReassigned(t *testing.T) {
	cases := []struct {
		name    string
		configs [][2]byte
		routes  map[byte]SensorKind
	}{
		{
			name:    "restored slot configured with a new id",
			configs: [][2]byte{{4, 1}, {1, 2}},
			routes:  map[byte]SensorKind{4: SensorDirection, 1: SensorLeftFoot},
		},
		{
			name:    "restored id claimed by another slot first",
			configs: [][2]byte{{1, 2}},
			routes:  map[byte]SensorKind{1: SensorLeftFoot},
		},
	}
	for _, c := range cases {
		e := NewEngine()
		e.Restore(SensorDirection, SensorInfo{ID: 1})
		for _, cfg := range c.configs {
			e.Dispatch(configFrame(cfg[0], cfg[1]), false)
		}
		for id, want := range c.routes {
			kind, _ := e.Dispatch(sampleFrame(id), false)
			require.Equal(t, want, kind, c.name)
		}
		s := e.Snapshot()
		require.False(t, s.LeftFoot.Provisional, c.name)
		if len(c.configs) == 1 {
			require.Equal(t, -1, s.Direction.ID, c.name)
		}
	}
}
