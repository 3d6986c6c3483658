package simulator

import (
	"github.com/arloliu/go-zaber/frame"
)

// process runs every complete record of p and returns the concatenated replies.
// Trailing partial records are ignored, as the hardware would time them out.
func (c *Chain) process(p []byte) []byte {
	var out []byte
	for off := 0; off+frame.RecordSize <= len(p); off += frame.RecordSize {
		rec := p[off : off+frame.RecordSize]
		out = append(out, c.command(rec[0], frame.Opcode(rec[1]), frame.DecodeData(rec[2:]))...)
	}

	return out
}

// command applies one request to the addressed actuators, in chain order.
func (c *Chain) command(addr byte, op frame.Opcode, data int32) []byte {
	var out []byte
	for i, a := range c.actuators {
		if !addressed(addr, i, a) {
			continue
		}

		replyOp, value, ok := a.apply(i, op, data)
		if !ok {
			continue
		}

		rec := frame.Encode(byte(i+1), replyOp, value) //nolint:gosec // bounded chain size
		out = append(out, rec[:]...)
	}

	return out
}

func addressed(addr byte, i int, a *Actuator) bool {
	if addr == frame.BroadcastAddress || int(addr) == i+1 {
		return true
	}

	alias := a.Settings[frame.SetAlias]

	return alias != 0 && int32(addr) == alias
}

// apply executes op on a and returns the reply opcode and data.
// ok is false for commands the hardware does not answer.
func (a *Actuator) apply(i int, op frame.Opcode, data int32) (frame.Opcode, int32, bool) {
	switch op {
	case frame.Reset:
		a.Position = 0
		a.Status = statusIdle

		return 0, 0, false

	case frame.Home:
		a.Position = a.Settings[frame.SetHomeOffset]
		a.Status = statusIdle

		return op, a.Position, true

	case frame.Renumber:
		return op, int32(i + 1), true //nolint:gosec // bounded chain size

	case frame.StorePosition:
		if data < 0 || data >= storedPositions {
			return errorReply, errInvalid, true
		}
		a.Stored[data] = a.Position

		return op, data, true

	case frame.ReturnStoredPosition:
		if data < 0 || data >= storedPositions {
			return errorReply, errInvalid, true
		}

		return op, a.Stored[data], true

	case frame.MoveToStoredPosition:
		if data < 0 || data >= storedPositions {
			return errorReply, errInvalid, true
		}
		a.Position = a.Stored[data]

		return op, a.Position, true

	case frame.MoveAbsolute:
		a.Position = data
		return op, a.Position, true

	case frame.MoveRelative:
		a.Position += data
		return op, a.Position, true

	case frame.MoveAtConstantSpeed:
		a.Status = statusMoving
		return op, data, true

	case frame.Stop:
		a.Status = statusIdle
		return op, a.Position, true

	case frame.ReadOrWriteMemory:
		reg := data & 0x7F
		if data&0x80 != 0 {
			a.Memory[reg] = uint32(data) >> 8 //nolint:gosec // register layout
		}

		return op, int32(a.Memory[reg]<<8 | uint32(reg)), true //nolint:gosec // register layout

	case frame.RestoreSettings:
		a.restoreSettings()
		return op, 0, true

	case frame.SetRunningCurrent, frame.SetHoldCurrent, frame.SetMode, frame.SetHomeSpeed,
		frame.SetTargetSpeed, frame.SetAcceleration, frame.SetHomeOffset, frame.SetAlias:
		a.Settings[op] = data
		return op, data, true

	case frame.ReturnDeviceID:
		return op, a.DeviceID, true

	case frame.ReturnSetting:
		setting := frame.Opcode(data) //nolint:gosec // setting numbers fit a byte
		v, ok := a.Settings[setting]
		if !ok {
			return errorReply, errInvalid, true
		}

		return setting, v, true

	case frame.ReturnStatus:
		return op, a.Status, true

	case frame.EchoData:
		return op, data, true

	case frame.ReturnCurrentPosition:
		return op, a.Position, true

	default:
		return errorReply, errInvalid, true
	}
}
