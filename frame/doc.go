// Package frame implements the Zaber binary protocol wire codec.
//
// Every message in either direction is a fixed 6-byte record:
//
//	[address:1][command:1][data0..data3:4]
//
// The data field is a signed 32-bit integer sent little-endian in two's
// complement. In a request, address 0 broadcasts to every actuator in the
// chain and address N targets the actuator at chain position N-1. In a
// reply, address N identifies the replying actuator; 0 never appears.
//
// A reply stream from a broadcast request carries one record per actuator,
// so a decoded buffer is always a whole multiple of RecordSize.
package frame
