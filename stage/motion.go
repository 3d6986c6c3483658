package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-zaber/chain"
)

// --- Reads ---

// GetPositions returns the position of every axis in user units. Each owned
// chain is queried once with a broadcast; unbound axes report 0.
func (s *Stage) GetPositions(ctx context.Context) (Positions, error) {
	return s.readAxes(ctx, (*chain.Chain).GetPosition, Binding.fromNativePosition)
}

// GetPositionsPercent returns the position of every axis as a percentage of
// its travel limit. Axes without a travel limit report 0.
func (s *Stage) GetPositionsPercent(ctx context.Context) (Positions, error) {
	pos, err := s.GetPositions(ctx)
	if err != nil {
		return Positions{}, err
	}

	var pct Positions
	for a, b := range s.snapshot() {
		if b != nil && b.HasTravelLimit() {
			pct[a] = pos[a] / b.TravelLimit * 100
		}
	}

	return pct, nil
}

// GetSpeeds returns the target speed of every axis in user units per second.
func (s *Stage) GetSpeeds(ctx context.Context) (Positions, error) {
	return s.readAxes(ctx, (*chain.Chain).GetTargetSpeed, Binding.fromNativeSpeed)
}

// IsMoving reports whether any bound axis is busy.
func (s *Stage) IsMoving(ctx context.Context) (bool, error) {
	bindings := s.snapshot()

	for serial, c := range s.Chains() {
		if !anyBound(bindings, serial) {
			continue
		}

		moving, err := c.IsMoving(ctx, chain.Broadcast)
		if err != nil {
			return false, err
		}

		for _, b := range bindings {
			if b == nil || b.SerialNumber != serial {
				continue
			}
			if b.Actuator >= len(moving) {
				return false, notInChain(b, len(moving))
			}
			if moving[b.Actuator] {
				return true, nil
			}
		}
	}

	return false, nil
}

type chainQuery func(*chain.Chain, context.Context, chain.Target) ([]int32, error)

// readAxes runs query once per owned chain and converts the values of the
// bound actuators.
func (s *Stage) readAxes(ctx context.Context, query chainQuery, convert func(Binding, int32) float64) (Positions, error) {
	var out Positions
	bindings := s.snapshot()

	for serial, c := range s.Chains() {
		values, err := query(c, ctx, chain.Broadcast)
		if err != nil {
			return Positions{}, err
		}

		for a, b := range bindings {
			if b == nil || b.SerialNumber != serial {
				continue
			}
			if b.Actuator >= len(values) {
				return Positions{}, notInChain(b, len(values))
			}
			out[a] = convert(*b, values[b.Actuator])
		}
	}

	return out, nil
}

func anyBound(bindings [NumAxes]*Binding, serial uint32) bool {
	for _, b := range bindings {
		if b != nil && b.SerialNumber == serial {
			return true
		}
	}

	return false
}

func notInChain(b *Binding, size int) error {
	return fmt.Errorf("stage: actuator %d of chain %d not in a chain of %d: %w",
		b.Actuator, b.SerialNumber, size, chain.ErrInvalidActuator)
}

// --- Motion ---

// MoveAbsolute moves axis to position p, in user units. A target that
// converts to a negative native position is ignored.
func (s *Stage) MoveAbsolute(ctx context.Context, axis Axis, p float64) error {
	b, c, err := s.resolve(axis)
	if err != nil {
		return err
	}

	native, err := b.toNativePosition(p)
	if err != nil {
		return err
	}
	if native < 0 {
		s.logger.Debug("zaber: negative target ignored", "axis", axis, "position", p)
		return nil
	}

	return c.MoveAbsolute(ctx, chain.Actuator(b.Actuator), native)
}

// MoveRelative moves axis by distance d, in user units.
func (s *Stage) MoveRelative(ctx context.Context, axis Axis, d float64) error {
	b, c, err := s.resolve(axis)
	if err != nil {
		return err
	}

	native, err := b.toNativePosition(d)
	if err != nil {
		return err
	}

	return c.MoveRelative(ctx, chain.Actuator(b.Actuator), native)
}

// MoveAtSpeed moves axis at speed v, in user units per second, until stopped.
func (s *Stage) MoveAtSpeed(ctx context.Context, axis Axis, v float64) error {
	b, c, err := s.resolve(axis)
	if err != nil {
		return err
	}

	native, err := b.toNativeSpeed(v)
	if err != nil {
		return err
	}

	return c.MoveAtSpeed(ctx, chain.Actuator(b.Actuator), native)
}

// MoveAbsolutePercent moves axis to pct percent of its travel limit.
// It does nothing when the axis has no travel limit.
func (s *Stage) MoveAbsolutePercent(ctx context.Context, axis Axis, pct float64) error {
	b, _, err := s.resolve(axis)
	if err != nil {
		return err
	}
	if !b.HasTravelLimit() {
		return nil
	}

	return s.MoveAbsolute(ctx, axis, pct/100*b.TravelLimit)
}

// MoveRelativePercent moves axis by pct percent of its travel limit.
// It does nothing when the axis has no travel limit.
func (s *Stage) MoveRelativePercent(ctx context.Context, axis Axis, pct float64) error {
	b, _, err := s.resolve(axis)
	if err != nil {
		return err
	}
	if !b.HasTravelLimit() {
		return nil
	}

	return s.MoveRelative(ctx, axis, pct/100*b.TravelLimit)
}

// SetSpeed sets the target speed of axis, in user units per second.
func (s *Stage) SetSpeed(ctx context.Context, axis Axis, v float64) error {
	b, c, err := s.resolve(axis)
	if err != nil {
		return err
	}

	native, err := b.toNativeSpeed(v)
	if err != nil {
		return err
	}

	return c.SetTargetSpeed(ctx, chain.Actuator(b.Actuator), native)
}

// SetAcceleration forwards accel, in native units, to the actuator of axis.
func (s *Stage) SetAcceleration(ctx context.Context, axis Axis, accel int32) error {
	b, c, err := s.resolve(axis)
	if err != nil {
		return err
	}

	return c.SetAcceleration(ctx, chain.Actuator(b.Actuator), accel)
}

// Home homes axes, or every bound axis when none is given.
func (s *Stage) Home(ctx context.Context, axes ...Axis) error {
	return s.each(ctx, axes, (*chain.Chain).Home)
}

// Stop stops axes, or every bound axis when none is given. Every axis is
// sent a stop even when an earlier one fails.
func (s *Stage) Stop(ctx context.Context, axes ...Axis) error {
	return s.each(ctx, axes, (*chain.Chain).Stop)
}

func (s *Stage) each(ctx context.Context, axes []Axis, fn func(*chain.Chain, context.Context, chain.Target) error) error {
	if len(axes) == 0 {
		axes = s.BoundAxes()
	}

	var errs []error
	for _, axis := range axes {
		b, c, err := s.resolve(axis)
		if err == nil {
			err = fn(c, ctx, chain.Actuator(b.Actuator))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("stage: axis %s: %w", axis, err))
		}
	}

	return errors.Join(errs...)
}
