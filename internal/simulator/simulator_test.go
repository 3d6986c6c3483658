package simulator

import (
	"testing"

	"github.com/arloliu/go-zaber/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(addr byte, op frame.Opcode, data int32) []byte {
	rec := frame.Encode(addr, op, data)
	return rec[:]
}

func TestChain_BroadcastEcho(t *testing.T) {
	c := New("sim", 3)

	raw, err := c.WriteRead(request(frame.BroadcastAddress, frame.EchoData, 123), 254*frame.RecordSize)
	require.NoError(t, err)

	replies, err := frame.Decode(raw)
	require.NoError(t, err)
	require.Len(t, replies, 3)
	for i, r := range replies {
		assert.Equal(t, i, r.Actuator)
		assert.Equal(t, frame.EchoData, r.Opcode)
		assert.Equal(t, int32(123), r.Data)
	}
}

func TestChain_AddressedMove(t *testing.T) {
	c := New("sim", 2)

	_, err := c.Write(request(2, frame.MoveAbsolute, -500))
	require.NoError(t, err)

	assert.Equal(t, int32(0), c.Actuator(0).Position)
	assert.Equal(t, int32(-500), c.Actuator(1).Position)
}

func TestChain_AliasAddressing(t *testing.T) {
	c := New("sim", 3)
	c.SetAlias(0, 49)
	c.SetAlias(2, 49)

	raw, err := c.WriteRead(request(50, frame.ReturnCurrentPosition, 0), 18)
	require.NoError(t, err)

	replies, err := frame.Decode(raw)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, 0, replies[0].Actuator)
	assert.Equal(t, 2, replies[1].Actuator)
}

func TestChain_Memory(t *testing.T) {
	c := New("sim", 1)

	_, err := c.Write(request(1, frame.ReadOrWriteMemory, 4242<<8|0x80|5))
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), c.Actuator(0).Memory[5])

	raw, err := c.WriteRead(request(1, frame.ReadOrWriteMemory, 5), 6)
	require.NoError(t, err)
	assert.Equal(t, int32(4242<<8|5), frame.DecodeData(raw[2:]))
}

func TestChain_UnknownCommand(t *testing.T) {
	c := New("sim", 1)

	raw, err := c.WriteRead(request(1, frame.Opcode(99), 0), 6)
	require.NoError(t, err)
	assert.Equal(t, byte(errorReply), raw[1])
}

func TestChain_CannedRepliesAndTruncation(t *testing.T) {
	c := New("sim", 2)
	c.QueueReply([]byte{1, 2, 3})

	raw, err := c.WriteRead(request(0, frame.EchoData, 1), 12)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	raw, err = c.WriteRead(request(0, frame.EchoData, 1), 6)
	require.NoError(t, err)
	assert.Len(t, raw, 6)

	ex := c.Exchanges()
	require.Len(t, ex, 2)
	assert.Equal(t, []byte{1, 2, 3}, ex[0].Reply)
}

func TestChain_ResetInputBuffer(t *testing.T) {
	c := New("sim", 1)

	_, err := c.Write(request(1, frame.Home, 0))
	require.NoError(t, err)
	require.NoError(t, c.ResetInputBuffer())

	raw, err := c.WriteRead(request(1, frame.ReturnStatus, 0), 12)
	require.NoError(t, err)
	assert.Len(t, raw, 6, "the Home reply was discarded")
}

func TestChain_Close(t *testing.T) {
	c := New("sim", 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.Equal(t, 2, c.CloseCount())

	_, err := c.Write(request(1, frame.Home, 0))
	require.ErrorIs(t, err, ErrClosed)
	_, err = c.WriteRead(request(1, frame.Home, 0), 6)
	require.ErrorIs(t, err, ErrClosed)
}

func TestChain_ResizeAndRestore(t *testing.T) {
	c := New("sim", 1)
	c.AddActuator()
	assert.Equal(t, 2, c.Size())
	c.RemoveActuator()
	assert.Equal(t, 1, c.Size())

	_, err := c.Write(request(1, frame.SetTargetSpeed, 77))
	require.NoError(t, err)
	_, err = c.Write(request(1, frame.RestoreSettings, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2000), c.Actuator(0).Settings[frame.SetTargetSpeed])
}
