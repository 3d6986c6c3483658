package frame

import "fmt"

// Opcode is a Zaber binary command number.
type Opcode byte

// Command numbers used by the driver.
const (
	Reset                 Opcode = 0
	Home                  Opcode = 1
	Renumber              Opcode = 2
	StorePosition         Opcode = 16
	ReturnStoredPosition  Opcode = 17
	MoveToStoredPosition  Opcode = 18
	MoveAbsolute          Opcode = 20
	MoveRelative          Opcode = 21
	MoveAtConstantSpeed   Opcode = 22
	Stop                  Opcode = 23
	ReadOrWriteMemory     Opcode = 35
	RestoreSettings       Opcode = 36
	SetRunningCurrent     Opcode = 38
	SetHoldCurrent        Opcode = 39
	SetMode               Opcode = 40
	SetHomeSpeed          Opcode = 41
	SetTargetSpeed        Opcode = 42
	SetAcceleration       Opcode = 43
	SetHomeOffset         Opcode = 47
	SetAlias              Opcode = 48
	ReturnDeviceID        Opcode = 50
	ReturnSetting         Opcode = 53
	ReturnStatus          Opcode = 54
	EchoData              Opcode = 55
	ReturnCurrentPosition Opcode = 60

	// ErrorReply is the opcode of a reply reporting a rejected command; its
	// data holds the device error code.
	ErrorReply Opcode = 255
)

var opcodeNames = map[Opcode]string{
	Reset:                 "Reset",
	Home:                  "Home",
	Renumber:              "Renumber",
	StorePosition:         "StorePosition",
	ReturnStoredPosition:  "ReturnStoredPosition",
	MoveToStoredPosition:  "MoveToStoredPosition",
	MoveAbsolute:          "MoveAbsolute",
	MoveRelative:          "MoveRelative",
	MoveAtConstantSpeed:   "MoveAtConstantSpeed",
	Stop:                  "Stop",
	ReadOrWriteMemory:     "ReadOrWriteMemory",
	RestoreSettings:       "RestoreSettings",
	SetRunningCurrent:     "SetRunningCurrent",
	SetHoldCurrent:        "SetHoldCurrent",
	SetMode:               "SetMode",
	SetHomeSpeed:          "SetHomeSpeed",
	SetTargetSpeed:        "SetTargetSpeed",
	SetAcceleration:       "SetAcceleration",
	SetHomeOffset:         "SetHomeOffset",
	SetAlias:              "SetAlias",
	ReturnDeviceID:        "ReturnDeviceID",
	ReturnSetting:         "ReturnSetting",
	ReturnStatus:          "ReturnStatus",
	EchoData:              "EchoData",
	ReturnCurrentPosition: "ReturnCurrentPosition",
	ErrorReply:            "Error",
}

// String returns the command name, or "Opcode(N)" for unnamed numbers.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}

	return fmt.Sprintf("Opcode(%d)", byte(op))
}
