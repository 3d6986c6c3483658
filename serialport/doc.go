// Package serialport connects chains to real serial ports through
// go.bug.st/serial and finds ports with a Zaber chain attached.
//
// Port implements chain.Transport: 8N1 framing at the configured baud rate,
// a read timeout bounding every exchange, and write pacing so that two
// writes are at least the configured write delay apart.
package serialport
