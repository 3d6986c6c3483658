package chain

import (
	"context"
	"testing"

	"github.com/arloliu/go-zaber/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Alias ---

func TestAlias_RoundTrip(t *testing.T) {
	c, _ := newProbedChain(t, 2)
	ctx := context.Background()

	for k := MinAlias; k <= MaxAlias; k++ {
		require.NoError(t, c.SetAlias(ctx, Actuator(1), k))

		aliases, err := c.GetAlias(ctx, Broadcast)
		require.NoError(t, err)
		assert.Equal(t, k, aliases[1], "alias %d", k)
		assert.Equal(t, NoAlias, aliases[0])
	}
}

func TestAlias_HardwareOffset(t *testing.T) {
	c, sim := newProbedChain(t, 1)

	require.NoError(t, c.SetAlias(context.Background(), Actuator(0), 0))
	writes := sim.Writes()
	assert.Equal(t, record(1, frame.SetAlias, 1), writes[len(writes)-1])

	require.NoError(t, c.ClearAlias(context.Background(), Actuator(0)))
	aliases, err := c.GetAlias(context.Background(), Actuator(0))
	require.NoError(t, err)
	assert.Equal(t, []int{NoAlias}, aliases)
}

func TestAlias_OutOfRange(t *testing.T) {
	c, sim := newProbedChain(t, 1)
	exchanges := len(sim.Exchanges())

	for _, k := range []int{-1, 99, 255} {
		err := c.SetAlias(context.Background(), Actuator(0), k)
		require.ErrorIs(t, err, ErrAliasOutOfRange)
		assert.True(t, IsParameterError(err))
	}

	assert.Empty(t, sim.Writes(), "rejected before any wire exchange")
	assert.Len(t, sim.Exchanges(), exchanges)
}

// --- Serial number ---

func TestSerialNumber_RoundTrip(t *testing.T) {
	c, sim := newProbedChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.SetSerialNumber(ctx, Actuator(0), 0xABCDEF))

	wire := uint32(0xABCDEF<<8 | 0x80)
	writes := sim.Writes()
	assert.Equal(t, record(1, frame.ReadOrWriteMemory, int32(wire)), writes[len(writes)-1]) //nolint:gosec // wire form

	serials, err := c.GetSerialNumber(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0xABCDEF, 0}, serials)

	ex := sim.Exchanges()
	assert.Equal(t, record(0, frame.ReadOrWriteMemory, SerialNumberRegister), ex[len(ex)-1].Request)
}

func TestSerialNumber_OutOfRange(t *testing.T) {
	c, sim := newProbedChain(t, 1)

	err := c.SetSerialNumber(context.Background(), Actuator(0), 1<<24)
	require.ErrorIs(t, err, ErrSerialNumberOutOfRange)
	assert.Empty(t, sim.Writes())
}

func TestMemory_Registers(t *testing.T) {
	c, _ := newProbedChain(t, 1)
	ctx := context.Background()

	require.NoError(t, c.WriteMemory(ctx, 5, Actuator(0), 42))
	vals, err := c.ReadMemory(ctx, 5, Actuator(0))
	require.NoError(t, err)
	assert.Equal(t, []uint32{42}, vals)

	_, err = c.ReadMemory(ctx, 128, Actuator(0))
	require.ErrorIs(t, err, ErrRegisterOutOfRange)
	err = c.WriteMemory(ctx, -1, Actuator(0), 1)
	require.ErrorIs(t, err, ErrRegisterOutOfRange)
}

// --- Currents ---

func TestCurrentConversion_Endpoints(t *testing.T) {
	code, err := CurrentToDevice(MinCurrent)
	require.NoError(t, err)
	assert.Equal(t, int32(127), code)

	code, err = CurrentToDevice(MaxCurrent)
	require.NoError(t, err)
	assert.Equal(t, int32(10), code)

	assert.Equal(t, MinCurrent, DeviceToCurrent(127))
	assert.Equal(t, MaxCurrent, DeviceToCurrent(10))
	assert.Equal(t, 0, DeviceToCurrent(0), "0 is current off")
	assert.Equal(t, MaxCurrent, DeviceToCurrent(5), "clamped")
	assert.Equal(t, MinCurrent, DeviceToCurrent(200), "clamped")
}

func TestCurrentConversion_MonotonicInversion(t *testing.T) {
	prev := int32(128)
	for p := MinCurrent; p <= MaxCurrent; p++ {
		code, err := CurrentToDevice(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, code, prev, "higher percent must not raise the device code")
		prev = code

		back := DeviceToCurrent(code)
		assert.InDelta(t, p, back, 1, "percent %d", p)
	}

	prevPct := 0
	for code := int32(127); code >= 10; code-- {
		pct := DeviceToCurrent(code)
		assert.GreaterOrEqual(t, pct, prevPct, "lower code must not lower the percent")
		prevPct = pct
	}
}

func TestCurrent_SetGet(t *testing.T) {
	c, sim := newProbedChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.SetRunningCurrent(ctx, Broadcast, 100))
	require.NoError(t, c.SetHoldCurrent(ctx, Actuator(1), 1))

	running, err := c.GetRunningCurrent(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100}, running)

	hold, err := c.GetHoldCurrent(ctx, Actuator(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, hold)
	assert.Equal(t, int32(127), sim.Actuator(1).Settings[frame.SetHoldCurrent])

	err = c.SetRunningCurrent(ctx, Broadcast, 0)
	require.ErrorIs(t, err, ErrCurrentOutOfRange)
	err = c.SetHoldCurrent(ctx, Broadcast, 101)
	require.ErrorIs(t, err, ErrCurrentOutOfRange)
}

// --- Generic settings ---

func TestSettings_SpeedsAccelerationOffset(t *testing.T) {
	c, _ := newProbedChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.SetTargetSpeed(ctx, Broadcast, 1234))
	require.NoError(t, c.SetHomeSpeed(ctx, Actuator(0), 999))
	require.NoError(t, c.SetAcceleration(ctx, Actuator(1), 77))
	require.NoError(t, c.SetHomeOffset(ctx, Broadcast, -50))

	speeds, err := c.GetTargetSpeed(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int32{1234, 1234}, speeds)

	home, err := c.GetHomeSpeed(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int32{999, 2000}, home)

	accel, err := c.GetAcceleration(ctx, Actuator(1))
	require.NoError(t, err)
	assert.Equal(t, []int32{77}, accel)

	offsets, err := c.GetHomeOffset(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int32{-50, -50}, offsets)

	raw, err := c.ReadSetting(ctx, frame.SetTargetSpeed, Actuator(0))
	require.NoError(t, err)
	assert.Equal(t, []int32{1234}, raw)

	ids, err := c.GetDeviceID(ctx, Broadcast)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

// --- Mode bits ---

func TestModeBit_ReadModifyWrite(t *testing.T) {
	c, sim := newProbedChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.SetMode(ctx, Actuator(0), 0b1001))

	require.NoError(t, c.SetModeBit(ctx, 2, Broadcast))
	modes, err := c.GetMode(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int32{0b1101, 0b0100}, modes)

	// Every mode write carries the absolute word, never a delta.
	writes := sim.Writes()
	assert.Equal(t, record(1, frame.SetMode, 0b1101), writes[len(writes)-2])
	assert.Equal(t, record(2, frame.SetMode, 0b0100), writes[len(writes)-1])

	require.NoError(t, c.ClearModeBit(ctx, 0, Actuator(0)))
	modes, err = c.GetMode(ctx, Actuator(0))
	require.NoError(t, err)
	assert.Equal(t, []int32{0b1100}, modes)
}

func TestModeBit_HighBit(t *testing.T) {
	c, _ := newProbedChain(t, 1)
	ctx := context.Background()

	require.NoError(t, c.SetModeBit(ctx, 31, Actuator(0)))
	modes, err := c.GetMode(ctx, Actuator(0))
	require.NoError(t, err)
	assert.Equal(t, []int32{-1 << 31}, modes)
}

func TestModeBit_OutOfRange(t *testing.T) {
	c, sim := newProbedChain(t, 1)
	exchanges := len(sim.Exchanges())

	require.ErrorIs(t, c.SetModeBit(context.Background(), 32, Broadcast), ErrModeBitOutOfRange)
	require.ErrorIs(t, c.ClearModeBit(context.Background(), -1, Broadcast), ErrModeBitOutOfRange)
	require.ErrorIs(t, c.SetModeBit(context.Background(), 1, Actuator(-1)), ErrInvalidActuator)
	assert.Len(t, sim.Exchanges(), exchanges)
}

// --- Motion and stored positions ---

func TestStoredPositions(t *testing.T) {
	c, _ := newProbedChain(t, 1)
	ctx := context.Background()
	a := Actuator(0)

	require.NoError(t, c.MoveAbsolute(ctx, a, 4000))
	require.NoError(t, c.StorePosition(ctx, a, 15))
	require.NoError(t, c.MoveRelative(ctx, a, 100))

	stored, err := c.GetStoredPosition(ctx, a, 15)
	require.NoError(t, err)
	assert.Equal(t, []int32{4000}, stored)

	require.NoError(t, c.MoveToStoredPosition(ctx, a, 15))
	pos, err := c.GetPosition(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int32{4000}, pos)

	for _, addr := range []int{-1, 16} {
		require.ErrorIs(t, c.StorePosition(ctx, a, addr), ErrStoredPositionOutOfRange)
		require.ErrorIs(t, c.MoveToStoredPosition(ctx, a, addr), ErrStoredPositionOutOfRange)
		_, err := c.GetStoredPosition(ctx, a, addr)
		require.ErrorIs(t, err, ErrStoredPositionOutOfRange)
	}
}

func TestMotion_HomeStopStatus(t *testing.T) {
	c, _ := newProbedChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.MoveAtSpeed(ctx, Actuator(1), 500))
	moving, err := c.IsMoving(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, moving)

	require.NoError(t, c.Stop(ctx, Broadcast))
	moving, err = c.IsMoving(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, moving)

	require.NoError(t, c.MoveAbsolute(ctx, Broadcast, 3000))
	require.NoError(t, c.Home(ctx, Actuator(0)))
	pos, err := c.GetPosition(ctx, Broadcast)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3000}, pos)

	require.NoError(t, c.Reset(ctx, Broadcast))
	require.NoError(t, c.RestoreSettings(ctx, Broadcast))

	echo, err := c.Echo(ctx, Actuator(1), -77)
	require.NoError(t, err)
	assert.Equal(t, []int32{-77}, echo)
}
