package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the size in bytes of every request and reply record.
const RecordSize = 6

// BroadcastAddress addresses every actuator in a chain.
const BroadcastAddress byte = 0

// MaxAddress is the highest wire address an actuator can hold.
const MaxAddress = 254

// ErrMalformedFrame indicates a reply buffer whose length is not a multiple of RecordSize.
var ErrMalformedFrame = errors.New("frame: malformed frame")

// Command is a single request record.
type Command struct {
	Address byte
	Opcode  Opcode
	Data    int32
}

// Bytes returns the 6-byte wire encoding of the command.
func (c Command) Bytes() []byte {
	buf := Encode(c.Address, c.Opcode, c.Data)
	return buf[:]
}

// String returns a compact representation for logs.
func (c Command) String() string {
	return fmt.Sprintf("[%d %s %d]", c.Address, c.Opcode, c.Data)
}

// Reply is a single decoded reply record.
type Reply struct {
	// Actuator is the zero-based chain position of the replying actuator.
	Actuator int
	// Opcode is the command number echoed by the actuator.
	Opcode Opcode
	// Data is the signed payload.
	Data int32
}

// Encode returns the wire record for the given address, opcode and data.
//
// Negative data is carried into the unsigned 32-bit space before being split
// into four little-endian bytes.
func Encode(address byte, opcode Opcode, data int32) [RecordSize]byte {
	var buf [RecordSize]byte
	buf[0] = address
	buf[1] = byte(opcode)
	binary.LittleEndian.PutUint32(buf[2:], uint32(data)) //nolint:gosec // two's complement by definition

	return buf
}

// DecodeData reconstructs a signed value from four little-endian bytes.
// A most significant byte of 128 or more yields a negative value.
func DecodeData(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b)) //nolint:gosec // two's complement by definition
}

// Decode splits buf into reply records.
//
// Decode fails with ErrMalformedFrame if len(buf) is not a multiple of
// RecordSize. An empty buffer decodes to an empty slice. A record carrying
// the broadcast address decodes to Actuator -1; rejecting it is up to the
// caller, which knows the chain size.
func Decode(buf []byte) ([]Reply, error) {
	if len(buf)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedFrame, len(buf), RecordSize)
	}

	replies := make([]Reply, 0, len(buf)/RecordSize)
	for off := 0; off < len(buf); off += RecordSize {
		rec := buf[off : off+RecordSize]
		replies = append(replies, Reply{
			Actuator: int(rec[0]) - 1,
			Opcode:   Opcode(rec[1]),
			Data:     DecodeData(rec[2:6]),
		})
	}

	return replies, nil
}
