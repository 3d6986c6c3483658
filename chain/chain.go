package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-zaber/frame"
	"github.com/arloliu/go-zaber/logger"
)

// MaxChainSize is the largest number of actuators a chain can address.
const MaxChainSize = frame.MaxAddress

// Chain is a daisy chain of actuators behind one transport.
//
// A Chain owns its transport: Close closes it. All methods are safe for
// concurrent use; exchanges are serialized by a chain-scoped lock.
type Chain struct {
	mu        sync.Mutex
	transport Transport
	cfg       *Config
	logger    logger.Logger

	// size is the cached number of actuators, 0 when unknown.
	// Written only with mu held.
	size atomic.Int32

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	metrics Metrics
}

// New creates a Chain on top of t. A nil cfg selects DefaultConfig.
//
// New does not touch the wire; the chain size is probed on the first query
// or by an explicit ProbeChainSize.
func New(t Transport, cfg *Config) (*Chain, error) {
	if t == nil {
		return nil, errors.New("chain: transport is nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Chain{
		transport: t,
		cfg:       cfg,
		logger:    cfg.logger.With("port", t.PortName()),
	}, nil
}

// PortName returns the port name of the transport.
func (c *Chain) PortName() string { return c.transport.PortName() }

// Config returns the chain configuration.
func (c *Chain) Config() *Config { return c.cfg }

// GetLogger returns the chain logger.
func (c *Chain) GetLogger() logger.Logger { return c.logger }

// Metrics returns the chain metrics.
func (c *Chain) Metrics() *Metrics { return &c.metrics }

// ChainSize returns the cached number of actuators, or 0 if unknown.
func (c *Chain) ChainSize() int { return int(c.size.Load()) }

// Close closes the transport. It is safe to call Close more than once;
// later calls return the result of the first.
func (c *Chain) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.closed.Store(true)
		c.closeErr = c.transport.Close()
		c.logger.Debug("zaber: chain closed", "error", c.closeErr)
	})

	return c.closeErr
}

// Execute sends one command to target without waiting for a reply.
//
// Both transport buffers are reset first so stale replies of earlier
// commands cannot be mistaken for replies of a later query.
func (c *Chain) Execute(ctx context.Context, op frame.Opcode, target Target, data int32) error {
	addr, err := target.address()
	if err != nil {
		return paramError("Execute", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.executeLocked(op, addr, data)
}

func (c *Chain) executeLocked(op frame.Opcode, addr byte, data int32) error {
	if c.closed.Load() {
		return c.transportError(op, ErrClosed)
	}

	if err := c.transport.ResetOutputBuffer(); err != nil {
		return c.transportError(op, err)
	}
	if err := c.transport.ResetInputBuffer(); err != nil {
		return c.transportError(op, err)
	}

	cmd := frame.Command{Address: addr, Opcode: op, Data: data}
	if _, err := c.transport.Write(cmd.Bytes()); err != nil {
		return c.transportError(op, err)
	}

	c.metrics.incCommandSendCount()
	c.logger.Debug("zaber: command sent", "command", cmd.String())

	return nil
}

// Query sends one command to target and returns the reply data.
//
// For Broadcast the result holds one value per actuator, indexed by chain
// position. For an addressed target it holds a single value.
//
// Structural reply errors are retried up to the configured retry limit; the
// final failure is a KindTerminal *Error wrapping ErrProtocol and the last
// structural cause. If no chain size is known, Query probes first.
// ctx is checked between attempts.
func (c *Chain) Query(ctx context.Context, op frame.Opcode, target Target, data int32) ([]int32, error) {
	addr, err := target.address()
	if err != nil {
		return nil, paramError("Query", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, c.transportError(op, ErrClosed)
	}

	size := int(c.size.Load())
	if size == 0 {
		if size, err = c.probeLocked(ctx); err != nil {
			return nil, err
		}
	}

	expected := 1
	if target.broadcast {
		expected = size
	}

	cmd := frame.Command{Address: addr, Opcode: op, Data: data}

	var (
		last       *Error
		sameActual = true
	)
	for attempt := 1; attempt <= c.cfg.retryLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := c.exchange(cmd, target, size, expected)
		if err == nil {
			c.metrics.incQueryCount()
			return values, nil
		}

		var perr *Error
		if !errors.As(err, &perr) || perr.Kind != KindStructural {
			return nil, err
		}

		if !errors.Is(perr, ErrChainSizeMismatch) || (last != nil && perr.Actual != last.Actual) {
			sameActual = false
		}
		last = perr

		if attempt < c.cfg.retryLimit {
			c.metrics.incRetryCount()
			c.logger.Warn("zaber: invalid reply, retrying",
				"command", cmd.String(),
				"attempt", attempt,
				"maxAttempts", c.cfg.retryLimit,
				"error", perr.Err,
			)
		}
	}

	c.metrics.incTerminalErrCount()

	terr := &Error{
		Kind:     KindTerminal,
		Op:       "Query",
		Port:     c.transport.PortName(),
		Opcode:   op,
		Actuator: last.Actuator,
		Expected: last.Expected,
		Actual:   last.Actual,
		Attempts: c.cfg.retryLimit,
		Err:      fmt.Errorf("%w: %w", ErrProtocol, last.Err),
	}
	// Every attempt agreeing on a different count points at a stale cached
	// size rather than a transient fault; only an explicit probe fixes that.
	terr.StaleSize = sameActual && last.Actual > 0 && c.cfg.retryLimit > 1

	c.logger.Error("zaber: query failed",
		"command", cmd.String(),
		"attempts", c.cfg.retryLimit,
		"expected", last.Expected,
		"actual", last.Actual,
		"staleSize", terr.StaleSize,
		"error", last.Err,
	)

	return nil, terr
}

// exchange performs one request/response round trip and validates the reply.
func (c *Chain) exchange(cmd frame.Command, target Target, size, expected int) ([]int32, error) {
	if err := c.transport.ResetInputBuffer(); err != nil {
		return nil, c.transportError(cmd.Opcode, err)
	}

	c.metrics.incAttemptCount()
	raw, err := c.transport.WriteRead(cmd.Bytes(), expected*frame.RecordSize)
	if err != nil {
		return nil, c.transportError(cmd.Opcode, err)
	}

	c.logger.Debug("zaber: exchange", "command", cmd.String(), "reply", fmt.Sprintf("% x", raw))

	replies, err := frame.Decode(raw)
	if err != nil {
		return nil, c.structuralError(cmd.Opcode, err, -1, expected, len(raw)/frame.RecordSize)
	}

	want := replyOpcode(cmd)
	for _, r := range replies {
		if r.Actuator < 0 || r.Actuator >= size {
			return nil, c.structuralError(cmd.Opcode, ErrActuatorAddress, r.Actuator, 0, 0)
		}
		if !target.broadcast && r.Actuator != target.index {
			return nil, c.structuralError(cmd.Opcode, ErrActuatorAddress, r.Actuator, 0, 0)
		}
		if r.Opcode == frame.ErrorReply {
			err := fmt.Errorf("%w: device error %d", ErrReplyOpcode, r.Data)
			return nil, c.structuralError(cmd.Opcode, err, r.Actuator, 0, 0)
		}
		if r.Opcode != want {
			err := fmt.Errorf("%w: got %s, want %s", ErrReplyOpcode, r.Opcode, want)
			return nil, c.structuralError(cmd.Opcode, err, r.Actuator, 0, 0)
		}
	}

	if len(replies) != expected {
		return nil, c.structuralError(cmd.Opcode, ErrChainSizeMismatch, -1, expected, len(replies))
	}

	if !target.broadcast {
		return []int32{replies[0].Data}, nil
	}

	values := make([]int32, size)
	seen := make([]bool, size)
	for _, r := range replies {
		if seen[r.Actuator] {
			return nil, c.structuralError(cmd.Opcode, ErrActuatorAddress, r.Actuator, 0, 0)
		}
		seen[r.Actuator] = true
		values[r.Actuator] = r.Data
	}

	return values, nil
}

// replyOpcode returns the opcode a valid reply to cmd carries. Settings
// are reported under the number of the command that writes them.
func replyOpcode(cmd frame.Command) frame.Opcode {
	if cmd.Opcode == frame.ReturnSetting {
		return frame.Opcode(cmd.Data) //nolint:gosec // setting numbers fit a byte
	}

	return cmd.Opcode
}

// ProbeChainSize discovers the number of actuators by broadcasting an echo
// and counting the reply records. The result is cached for later queries.
//
// If no reply of valid length arrives within the retry limit, it returns 0
// and a KindTerminal error wrapping ErrChainSizeUnknown.
func (c *Chain) ProbeChainSize(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return 0, c.transportError(frame.EchoData, ErrClosed)
	}

	return c.probeLocked(ctx)
}

func (c *Chain) probeLocked(ctx context.Context) (int, error) {
	c.metrics.incProbeCount()

	cmd := frame.Command{Address: frame.BroadcastAddress, Opcode: frame.EchoData, Data: c.cfg.probeData}

	for attempt := 1; attempt <= c.cfg.retryLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := c.transport.ResetInputBuffer(); err != nil {
			return 0, c.transportError(cmd.Opcode, err)
		}

		c.metrics.incAttemptCount()
		raw, err := c.transport.WriteRead(cmd.Bytes(), MaxChainSize*frame.RecordSize)
		if err != nil {
			return 0, c.transportError(cmd.Opcode, err)
		}

		if len(raw) > 0 && len(raw)%frame.RecordSize == 0 {
			n := len(raw) / frame.RecordSize
			c.size.Store(int32(n)) //nolint:gosec // bounded by MaxChainSize
			c.logger.Info("zaber: chain size probed", "actuators", n, "attempt", attempt)

			return n, nil
		}

		if attempt < c.cfg.retryLimit {
			c.metrics.incRetryCount()
		}
		c.logger.Debug("zaber: probe reply invalid", "attempt", attempt, "length", len(raw))
	}

	c.size.Store(0)
	c.logger.Error("zaber: chain size probe failed", "attempts", c.cfg.retryLimit)

	return 0, &Error{
		Kind:     KindTerminal,
		Op:       "ProbeChainSize",
		Port:     c.transport.PortName(),
		Opcode:   frame.EchoData,
		Actuator: -1,
		Attempts: c.cfg.retryLimit,
		Err:      ErrChainSizeUnknown,
	}
}

// Renumber makes every actuator reassign its address from its physical
// position in the chain. The cached chain size is discarded; the next query
// probes again.
func (c *Chain) Renumber(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.executeLocked(frame.Renumber, frame.BroadcastAddress, 0)
	c.size.Store(0)

	return err
}

func (c *Chain) transportError(op frame.Opcode, err error) *Error {
	return &Error{
		Kind:     KindTransport,
		Op:       op.String(),
		Port:     c.transport.PortName(),
		Opcode:   op,
		Actuator: -1,
		Err:      err,
	}
}

func (c *Chain) structuralError(op frame.Opcode, err error, actuator, expected, actual int) *Error {
	return &Error{
		Kind:     KindStructural,
		Op:       op.String(),
		Port:     c.transport.PortName(),
		Opcode:   op,
		Actuator: actuator,
		Expected: expected,
		Actual:   actual,
		Err:      err,
	}
}
