package stage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/arloliu/go-zaber/chain"
	"github.com/arloliu/go-zaber/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrInvalidAxis          = errors.New("stage: invalid axis")
	ErrAxisNotBound         = errors.New("stage: axis not bound")
	ErrUnknownChain         = errors.New("stage: no chain with this serial number")
	ErrUnknownAlias         = errors.New("stage: no actuator with this alias")
	ErrDuplicateSerial      = errors.New("stage: two chains report the same serial number")
	ErrInvalidMicrostepSize = errors.New("stage: microstep size must be positive")
	ErrInvalidTravelLimit   = errors.New("stage: travel limit must be positive")
	ErrValueOutOfRange      = errors.New("stage: value outside the native range")
)

// Option configures a Stage.
type Option interface {
	apply(*Stage)
}

type optFunc func(*Stage)

func (f optFunc) apply(s *Stage) { f(s) }

// WithLogger sets the stage logger. The default is the logger of the first chain.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(s *Stage) {
		if l != nil {
			s.logger = l
		}
	})
}

// Stage is a set of chains and up to NumAxes axis bindings.
//
// Stage is safe for concurrent use.
type Stage struct {
	chains  *xsync.MapOf[uint32, *chain.Chain]
	serials []uint32 // sorted keys of chains, fixed after New

	mu       sync.RWMutex
	bindings [NumAxes]*Binding

	logger    logger.Logger
	closeOnce sync.Once
	closeErr  error
}

// New reads the serial number of actuator 0 of every chain and returns a
// Stage owning the chains, keyed by those serial numbers.
//
// On error no chain is closed; ownership stays with the caller.
func New(ctx context.Context, chains []*chain.Chain, opts ...Option) (*Stage, error) {
	s := &Stage{chains: xsync.NewMapOf[uint32, *chain.Chain]()}
	for _, opt := range opts {
		opt.apply(s)
	}
	if s.logger == nil {
		if len(chains) > 0 && chains[0] != nil {
			s.logger = chains[0].Config().GetLogger()
		} else {
			s.logger = logger.GetLogger()
		}
	}

	for _, c := range chains {
		if c == nil {
			return nil, errors.New("stage: nil chain")
		}

		serials, err := c.GetSerialNumber(ctx, chain.Actuator(0))
		if err != nil {
			return nil, fmt.Errorf("stage: read serial number on %s: %w", c.PortName(), err)
		}

		serial := serials[0]
		if prev, loaded := s.chains.LoadOrStore(serial, c); loaded {
			return nil, fmt.Errorf("%w: %d on %s and %s", ErrDuplicateSerial, serial, prev.PortName(), c.PortName())
		}
		s.serials = append(s.serials, serial)

		s.logger.Info("zaber: chain added to stage", "port", c.PortName(), "serialNumber", serial)
	}
	slices.Sort(s.serials)

	return s, nil
}

// Chain returns the chain keyed by serial.
func (s *Stage) Chain(serial uint32) (*chain.Chain, bool) {
	return s.chains.Load(serial)
}

// Chains iterates over the owned chains in serial number order.
func (s *Stage) Chains() iter.Seq2[uint32, *chain.Chain] {
	return func(yield func(uint32, *chain.Chain) bool) {
		for _, serial := range s.serials {
			c, ok := s.chains.Load(serial)
			if !ok {
				continue
			}
			if !yield(serial, c) {
				return
			}
		}
	}
}

// SerialNumbers returns the keys of the owned chains in ascending order.
func (s *Stage) SerialNumbers() []uint32 {
	return slices.Clone(s.serials)
}

// Close closes every owned chain. Later calls return the first result.
func (s *Stage) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for serial, c := range s.Chains() {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("stage: close chain %d: %w", serial, err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("zaber: stage closed", "chains", len(s.serials))
	})

	return s.closeErr
}

// --- Bindings ---

// BindAxis binds axis to the actuator of chain serial whose alias is alias.
// The alias is resolved once, when BindAxis is called.
func (s *Stage) BindAxis(ctx context.Context, axis Axis, serial uint32, alias int) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
	}

	c, ok := s.chains.Load(serial)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, serial)
	}

	aliases, err := c.GetAlias(ctx, chain.Broadcast)
	if err != nil {
		return fmt.Errorf("stage: bind %s: %w", axis, err)
	}

	index := slices.Index(aliases, alias)
	if alias == chain.NoAlias || index < 0 {
		return fmt.Errorf("%w: alias %d on chain %d", ErrUnknownAlias, alias, serial)
	}

	s.bind(axis, serial, index)

	return nil
}

// BindAxisActuator binds axis to actuator index of chain serial.
func (s *Stage) BindAxisActuator(axis Axis, serial uint32, index int) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
	}
	if _, ok := s.chains.Load(serial); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, serial)
	}
	if index < 0 || index >= chain.MaxChainSize {
		return fmt.Errorf("%w: %d", chain.ErrInvalidActuator, index)
	}

	s.bind(axis, serial, index)

	return nil
}

func (s *Stage) bind(axis Axis, serial uint32, index int) {
	s.mu.Lock()
	s.bindings[axis] = &Binding{SerialNumber: serial, Actuator: index, MicrostepSize: DefaultMicrostepSize}
	s.mu.Unlock()

	s.logger.Info("zaber: axis bound", "axis", axis, "serialNumber", serial, "actuator", index)
}

// Unbind removes the binding of axis.
func (s *Stage) Unbind(axis Axis) {
	if !axis.Valid() {
		return
	}

	s.mu.Lock()
	s.bindings[axis] = nil
	s.mu.Unlock()
}

// Binding returns a copy of the binding of axis.
func (s *Stage) Binding(axis Axis) (Binding, bool) {
	if !axis.Valid() {
		return Binding{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.bindings[axis]; b != nil {
		return *b, true
	}

	return Binding{}, false
}

// BoundAxes returns the bound axes in order.
func (s *Stage) BoundAxes() []Axis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var axes []Axis
	for _, a := range Axes {
		if s.bindings[a] != nil {
			axes = append(axes, a)
		}
	}

	return axes
}

// SetMicrostepSize sets the length of one microstep of axis, in user units.
func (s *Stage) SetMicrostepSize(axis Axis, size float64) error {
	if !(size > 0) || math.IsInf(size, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidMicrostepSize, size)
	}

	return s.update(axis, func(b *Binding) { b.MicrostepSize = size })
}

// SetTravelLimit sets the travel limit of axis, in user units.
func (s *Stage) SetTravelLimit(axis Axis, limit float64) error {
	if !(limit > 0) || math.IsInf(limit, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidTravelLimit, limit)
	}

	return s.update(axis, func(b *Binding) { b.TravelLimit = limit })
}

// ClearTravelLimit removes the travel limit of axis.
func (s *Stage) ClearTravelLimit(axis Axis) error {
	return s.update(axis, func(b *Binding) { b.TravelLimit = 0 })
}

func (s *Stage) update(axis Axis, fn func(*Binding)) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bindings[axis]
	if b == nil {
		return fmt.Errorf("%w: %s", ErrAxisNotBound, axis)
	}

	// Bindings are replaced, never mutated: snapshot holds the old pointers.
	nb := *b
	fn(&nb)
	s.bindings[axis] = &nb

	return nil
}

// resolve returns the binding of axis and its chain.
func (s *Stage) resolve(axis Axis) (Binding, *chain.Chain, error) {
	b, ok := s.Binding(axis)
	if !ok {
		if !axis.Valid() {
			return Binding{}, nil, fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
		}

		return Binding{}, nil, fmt.Errorf("%w: %s", ErrAxisNotBound, axis)
	}

	c, ok := s.chains.Load(b.SerialNumber)
	if !ok {
		return Binding{}, nil, fmt.Errorf("%w: %d", ErrUnknownChain, b.SerialNumber)
	}

	return b, c, nil
}

// snapshot returns the current bindings.
func (s *Stage) snapshot() [NumAxes]*Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bindings
}
