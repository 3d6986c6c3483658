package chain

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/go-zaber/frame"
)

// Alias limits. The hardware stores alias+1 so that 0 reads back as unset.
const (
	MinAlias = 0
	MaxAlias = 98

	// NoAlias is reported by GetAlias for an actuator without an alias.
	NoAlias = -1
)

// Memory register layout of command ReadOrWriteMemory: bit 7 of the data
// selects a write, the low 7 bits the register, and a written value occupies
// the bits above the first byte.
const (
	memoryWriteFlag    = 0x80
	memoryRegisterMask = 0x7F
	memoryValueShift   = 8
	maxMemoryValue     = 1<<24 - 1

	// SerialNumberRegister is the memory register holding the chain serial number.
	SerialNumberRegister = 0
)

// Current limits. Users pass a percentage in [MinCurrent, MaxCurrent];
// the device takes an inverted code where a larger code is a smaller current.
const (
	MinCurrent = 1
	MaxCurrent = 100

	deviceCurrentLow  = 127 // code for MinCurrent
	deviceCurrentHigh = 10  // code for MaxCurrent
)

// MaxStoredPosition is the highest stored position address.
const MaxStoredPosition = 15

// ReadSetting returns the value of setting for target. setting is the
// command number that writes the setting, e.g. frame.SetTargetSpeed.
func (c *Chain) ReadSetting(ctx context.Context, setting frame.Opcode, target Target) ([]int32, error) {
	return c.Query(ctx, frame.ReturnSetting, target, int32(setting))
}

// WriteSetting writes value to setting for target.
func (c *Chain) WriteSetting(ctx context.Context, setting frame.Opcode, target Target, value int32) error {
	return c.Execute(ctx, setting, target, value)
}

// --- Alias ---

// GetAlias returns the alias of each targeted actuator, NoAlias when unset.
func (c *Chain) GetAlias(ctx context.Context, target Target) ([]int, error) {
	raw, err := c.ReadSetting(ctx, frame.SetAlias, target)
	if err != nil {
		return nil, err
	}

	aliases := make([]int, len(raw))
	for i, v := range raw {
		if v == 0 {
			aliases[i] = NoAlias
		} else {
			aliases[i] = int(v) - 1
		}
	}

	return aliases, nil
}

// SetAlias assigns alias, in [MinAlias, MaxAlias], to target.
func (c *Chain) SetAlias(ctx context.Context, target Target, alias int) error {
	if alias < MinAlias || alias > MaxAlias {
		return paramError("SetAlias", fmt.Errorf("%w: %d", ErrAliasOutOfRange, alias))
	}

	return c.WriteSetting(ctx, frame.SetAlias, target, int32(alias+1)) //nolint:gosec // range checked
}

// ClearAlias removes the alias of target.
func (c *Chain) ClearAlias(ctx context.Context, target Target) error {
	return c.WriteSetting(ctx, frame.SetAlias, target, 0)
}

// --- Memory and serial number ---

// ReadMemory returns the value stored in register of each targeted actuator.
func (c *Chain) ReadMemory(ctx context.Context, register int, target Target) ([]uint32, error) {
	if register < 0 || register > memoryRegisterMask {
		return nil, paramError("ReadMemory", fmt.Errorf("%w: %d", ErrRegisterOutOfRange, register))
	}

	raw, err := c.Query(ctx, frame.ReadOrWriteMemory, target, int32(register))
	if err != nil {
		return nil, err
	}

	values := make([]uint32, len(raw))
	for i, v := range raw {
		values[i] = uint32(v) >> memoryValueShift //nolint:gosec // register bits are stripped
	}

	return values, nil
}

// WriteMemory stores a 24-bit value in register of target.
func (c *Chain) WriteMemory(ctx context.Context, register int, target Target, value uint32) error {
	if register < 0 || register > memoryRegisterMask {
		return paramError("WriteMemory", fmt.Errorf("%w: %d", ErrRegisterOutOfRange, register))
	}
	if value > maxMemoryValue {
		return paramError("WriteMemory", fmt.Errorf("%w: %d", ErrSerialNumberOutOfRange, value))
	}

	data := value<<memoryValueShift | memoryWriteFlag | uint32(register) //nolint:gosec // range checked

	return c.Execute(ctx, frame.ReadOrWriteMemory, target, int32(data)) //nolint:gosec // two's complement on the wire
}

// GetSerialNumber returns the serial number of each targeted actuator.
func (c *Chain) GetSerialNumber(ctx context.Context, target Target) ([]uint32, error) {
	return c.ReadMemory(ctx, SerialNumberRegister, target)
}

// SetSerialNumber stores a serial number, at most 24 bits, in target.
func (c *Chain) SetSerialNumber(ctx context.Context, target Target, serial uint32) error {
	return c.WriteMemory(ctx, SerialNumberRegister, target, serial)
}

// --- Currents ---

// CurrentToDevice converts a current percentage into the device code.
// The mapping is linear and inverted: MinCurrent maps to 127, MaxCurrent to 10.
func CurrentToDevice(percent int) (int32, error) {
	if percent < MinCurrent || percent > MaxCurrent {
		return 0, fmt.Errorf("%w: %d", ErrCurrentOutOfRange, percent)
	}

	span := float64(deviceCurrentLow - deviceCurrentHigh)
	code := float64(deviceCurrentLow) - float64(percent-MinCurrent)*span/float64(MaxCurrent-MinCurrent)

	return int32(math.Round(code)), nil
}

// DeviceToCurrent converts a device code into a current percentage.
// Code 0 means the current is off and converts to 0; other codes are
// clamped to the device range first.
func DeviceToCurrent(code int32) int {
	if code == 0 {
		return 0
	}
	code = min(max(code, deviceCurrentHigh), deviceCurrentLow)

	span := float64(deviceCurrentLow - deviceCurrentHigh)
	percent := float64(MinCurrent) + float64(deviceCurrentLow-code)*float64(MaxCurrent-MinCurrent)/span

	return int(math.Round(percent))
}

func (c *Chain) getCurrent(ctx context.Context, setting frame.Opcode, target Target) ([]int, error) {
	raw, err := c.ReadSetting(ctx, setting, target)
	if err != nil {
		return nil, err
	}

	currents := make([]int, len(raw))
	for i, v := range raw {
		currents[i] = DeviceToCurrent(v)
	}

	return currents, nil
}

func (c *Chain) setCurrent(ctx context.Context, op string, setting frame.Opcode, target Target, percent int) error {
	code, err := CurrentToDevice(percent)
	if err != nil {
		return paramError(op, err)
	}

	return c.WriteSetting(ctx, setting, target, code)
}

// GetRunningCurrent returns the running current percentage of each targeted actuator.
func (c *Chain) GetRunningCurrent(ctx context.Context, target Target) ([]int, error) {
	return c.getCurrent(ctx, frame.SetRunningCurrent, target)
}

// SetRunningCurrent sets the running current percentage, in [1, 100].
func (c *Chain) SetRunningCurrent(ctx context.Context, target Target, percent int) error {
	return c.setCurrent(ctx, "SetRunningCurrent", frame.SetRunningCurrent, target, percent)
}

// GetHoldCurrent returns the hold current percentage of each targeted actuator.
func (c *Chain) GetHoldCurrent(ctx context.Context, target Target) ([]int, error) {
	return c.getCurrent(ctx, frame.SetHoldCurrent, target)
}

// SetHoldCurrent sets the hold current percentage, in [1, 100].
func (c *Chain) SetHoldCurrent(ctx context.Context, target Target, percent int) error {
	return c.setCurrent(ctx, "SetHoldCurrent", frame.SetHoldCurrent, target, percent)
}

// --- Speeds, acceleration, offsets ---

// GetTargetSpeed returns the target speed, in device units.
func (c *Chain) GetTargetSpeed(ctx context.Context, target Target) ([]int32, error) {
	return c.ReadSetting(ctx, frame.SetTargetSpeed, target)
}

// SetTargetSpeed sets the target speed, in device units.
func (c *Chain) SetTargetSpeed(ctx context.Context, target Target, speed int32) error {
	return c.WriteSetting(ctx, frame.SetTargetSpeed, target, speed)
}

// GetHomeSpeed returns the homing speed, in device units.
func (c *Chain) GetHomeSpeed(ctx context.Context, target Target) ([]int32, error) {
	return c.ReadSetting(ctx, frame.SetHomeSpeed, target)
}

// SetHomeSpeed sets the homing speed, in device units.
func (c *Chain) SetHomeSpeed(ctx context.Context, target Target, speed int32) error {
	return c.WriteSetting(ctx, frame.SetHomeSpeed, target, speed)
}

// GetAcceleration returns the acceleration, in device units.
func (c *Chain) GetAcceleration(ctx context.Context, target Target) ([]int32, error) {
	return c.ReadSetting(ctx, frame.SetAcceleration, target)
}

// SetAcceleration sets the acceleration, in device units.
func (c *Chain) SetAcceleration(ctx context.Context, target Target, accel int32) error {
	return c.WriteSetting(ctx, frame.SetAcceleration, target, accel)
}

// GetHomeOffset returns the home offset, in microsteps.
func (c *Chain) GetHomeOffset(ctx context.Context, target Target) ([]int32, error) {
	return c.ReadSetting(ctx, frame.SetHomeOffset, target)
}

// SetHomeOffset sets the home offset, in microsteps.
func (c *Chain) SetHomeOffset(ctx context.Context, target Target, offset int32) error {
	return c.WriteSetting(ctx, frame.SetHomeOffset, target, offset)
}

// GetDeviceID returns the device type id of each targeted actuator.
func (c *Chain) GetDeviceID(ctx context.Context, target Target) ([]int32, error) {
	return c.Query(ctx, frame.ReturnDeviceID, target, 0)
}

// --- Mode ---

// GetMode returns the mode word of each targeted actuator.
func (c *Chain) GetMode(ctx context.Context, target Target) ([]int32, error) {
	return c.ReadSetting(ctx, frame.SetMode, target)
}

// SetMode writes the full mode word.
func (c *Chain) SetMode(ctx context.Context, target Target, mode int32) error {
	return c.WriteSetting(ctx, frame.SetMode, target, mode)
}

// SetModeBit sets bit of the mode word of each targeted actuator.
func (c *Chain) SetModeBit(ctx context.Context, bit int, target Target) error {
	return c.updateModeBit(ctx, "SetModeBit", bit, target, func(mode uint32, mask uint32) uint32 {
		return mode | mask
	})
}

// ClearModeBit clears bit of the mode word of each targeted actuator.
func (c *Chain) ClearModeBit(ctx context.Context, bit int, target Target) error {
	return c.updateModeBit(ctx, "ClearModeBit", bit, target, func(mode uint32, mask uint32) uint32 {
		return mode &^ mask
	})
}

// updateModeBit reads the mode word and writes the whole word back, one
// actuator at a time; the device only accepts absolute mode values.
func (c *Chain) updateModeBit(ctx context.Context, op string, bit int, target Target, apply func(mode, mask uint32) uint32) error {
	if bit < 0 || bit > 31 {
		return paramError(op, fmt.Errorf("%w: %d", ErrModeBitOutOfRange, bit))
	}
	if _, err := target.address(); err != nil {
		return paramError(op, err)
	}

	modes, err := c.GetMode(ctx, target)
	if err != nil {
		return err
	}

	mask := uint32(1) << uint(bit)
	for i, mode := range modes {
		t := target
		if target.broadcast {
			t = Actuator(i)
		}

		updated := int32(apply(uint32(mode), mask)) //nolint:gosec // two's complement on the wire
		if err := c.SetMode(ctx, t, updated); err != nil {
			return err
		}
	}

	return nil
}
