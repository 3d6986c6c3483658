// Package simulator provides an in-memory Zaber actuator chain that speaks the
// binary protocol through the chain.Transport contract.
//
// It tracks positions, settings, memory registers and aliases per actuator,
// answers broadcast and addressed commands the way a real chain does, and can
// inject canned replies to exercise retry paths.
package simulator

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-zaber/frame"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("simulator: port closed")

const (
	memoryRegisters = 128
	storedPositions = 16

	statusIdle   = 0
	statusMoving = 22

	errorReply = 255
	errInvalid = 64

	defaultDeviceID = 4012
)

// Actuator is the state of one simulated actuator.
type Actuator struct {
	Position int32
	Status   int32
	DeviceID int32
	Settings map[frame.Opcode]int32
	Memory   [memoryRegisters]uint32
	Stored   [storedPositions]int32
}

func newActuator() *Actuator {
	a := &Actuator{DeviceID: defaultDeviceID}
	a.restoreSettings()

	return a
}

func (a *Actuator) restoreSettings() {
	a.Settings = map[frame.Opcode]int32{
		frame.SetRunningCurrent: 10,
		frame.SetHoldCurrent:    20,
		frame.SetMode:           0,
		frame.SetHomeSpeed:      2000,
		frame.SetTargetSpeed:    2000,
		frame.SetAcceleration:   0,
		frame.SetHomeOffset:     0,
		frame.SetAlias:          0,
	}
}

// Exchange is one logged request and the reply handed back.
type Exchange struct {
	Request []byte
	Reply   []byte
}

// Chain is a simulated actuator chain. It implements chain.Transport.
type Chain struct {
	mu        sync.Mutex
	name      string
	actuators []*Actuator
	pending   []byte
	canned    [][]byte
	exchanges []Exchange
	writes    [][]byte
	closed    bool

	closeCount atomic.Int32
	inFlight   atomic.Int32
	overlaps   atomic.Int32
	delay      time.Duration
}

// New creates a chain named name with n actuators at position 0.
func New(name string, n int) *Chain {
	c := &Chain{name: name}
	for range n {
		c.actuators = append(c.actuators, newActuator())
	}

	return c
}

// --- chain.Transport ---

// PortName returns the simulated port name.
func (c *Chain) PortName() string { return c.name }

// Write processes every command in p. Replies are buffered as unread input.
func (c *Chain) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	c.writes = append(c.writes, append([]byte(nil), p...))
	c.pending = append(c.pending, c.process(p)...)

	return len(p), nil
}

// WriteRead processes p and returns up to size bytes of reply. A queued
// canned reply replaces the simulated one.
func (c *Chain) WriteRead(p []byte, size int) ([]byte, error) {
	if c.inFlight.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	defer c.inFlight.Add(-1)

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	var reply []byte
	if len(c.canned) > 0 {
		reply = c.canned[0]
		c.canned = c.canned[1:]
	} else {
		reply = append(c.pending, c.process(p)...)
		c.pending = nil
	}
	if len(reply) > size {
		reply = reply[:size]
	}

	c.exchanges = append(c.exchanges, Exchange{
		Request: append([]byte(nil), p...),
		Reply:   append([]byte(nil), reply...),
	})

	return reply, nil
}

// ResetInputBuffer drops buffered replies.
func (c *Chain) ResetInputBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.pending = nil

	return nil
}

// ResetOutputBuffer is a no-op; writes are processed immediately.
func (c *Chain) ResetOutputBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	return nil
}

// Close marks the port closed.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.closeCount.Add(1)

	return nil
}

// --- Test controls ---

// QueueReply makes the next WriteRead return raw instead of a simulated reply.
// Calls accumulate in order.
func (c *Chain) QueueReply(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.canned = append(c.canned, append([]byte(nil), raw...))
}

// QueueReplies queues raw n times.
func (c *Chain) QueueReplies(n int, raw []byte) {
	for range n {
		c.QueueReply(raw)
	}
}

// SetExchangeDelay makes every WriteRead block for d before replying.
func (c *Chain) SetExchangeDelay(d time.Duration) {
	c.delay = d
}

// Actuator returns the state of actuator i. The caller may modify it while
// no exchange is in progress.
func (c *Chain) Actuator(i int) *Actuator {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.actuators[i]
}

// Size returns the number of simulated actuators.
func (c *Chain) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.actuators)
}

// AddActuator appends an actuator to the end of the chain.
func (c *Chain) AddActuator() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actuators = append(c.actuators, newActuator())
}

// RemoveActuator detaches the last actuator of the chain.
func (c *Chain) RemoveActuator() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.actuators) > 0 {
		c.actuators = c.actuators[:len(c.actuators)-1]
	}
}

// SetSerialNumber stores serial in the serial number register of actuator i.
func (c *Chain) SetSerialNumber(i int, serial uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actuators[i].Memory[0] = serial
}

// SetAlias sets the alias of actuator i, stored in hardware as alias+1.
func (c *Chain) SetAlias(i int, alias int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actuators[i].Settings[frame.SetAlias] = int32(alias + 1) //nolint:gosec // test helper
}

// Exchanges returns a copy of the WriteRead log.
func (c *Chain) Exchanges() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Exchange(nil), c.exchanges...)
}

// Writes returns a copy of the requests sent through Write.
func (c *Chain) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([][]byte(nil), c.writes...)
}

// Overlaps returns how many WriteRead calls started while another was running.
func (c *Chain) Overlaps() int { return int(c.overlaps.Load()) }

// CloseCount returns how many times Close was called.
func (c *Chain) CloseCount() int { return int(c.closeCount.Load()) }

// Closed reports whether the port is closed.
func (c *Chain) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
