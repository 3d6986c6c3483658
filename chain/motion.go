package chain

import (
	"context"
	"fmt"

	"github.com/arloliu/go-zaber/frame"
)

// Reset restarts the targeted actuators, as if powered off and on.
func (c *Chain) Reset(ctx context.Context, target Target) error {
	return c.Execute(ctx, frame.Reset, target, 0)
}

// Home moves the targeted actuators to their home position.
func (c *Chain) Home(ctx context.Context, target Target) error {
	return c.Execute(ctx, frame.Home, target, 0)
}

// MoveAbsolute moves the targeted actuators to position, in microsteps.
func (c *Chain) MoveAbsolute(ctx context.Context, target Target, position int32) error {
	return c.Execute(ctx, frame.MoveAbsolute, target, position)
}

// MoveRelative moves the targeted actuators by distance, in microsteps.
func (c *Chain) MoveRelative(ctx context.Context, target Target, distance int32) error {
	return c.Execute(ctx, frame.MoveRelative, target, distance)
}

// MoveAtSpeed moves the targeted actuators at a constant speed until stopped.
func (c *Chain) MoveAtSpeed(ctx context.Context, target Target, speed int32) error {
	return c.Execute(ctx, frame.MoveAtConstantSpeed, target, speed)
}

// Stop stops the targeted actuators.
func (c *Chain) Stop(ctx context.Context, target Target) error {
	return c.Execute(ctx, frame.Stop, target, 0)
}

// RestoreSettings restores the factory settings of the targeted actuators.
func (c *Chain) RestoreSettings(ctx context.Context, target Target) error {
	return c.Execute(ctx, frame.RestoreSettings, target, 0)
}

// GetPosition returns the current position, in microsteps.
func (c *Chain) GetPosition(ctx context.Context, target Target) ([]int32, error) {
	return c.Query(ctx, frame.ReturnCurrentPosition, target, 0)
}

// GetStatus returns the status code of each targeted actuator; 0 is idle.
func (c *Chain) GetStatus(ctx context.Context, target Target) ([]int32, error) {
	return c.Query(ctx, frame.ReturnStatus, target, 0)
}

// IsMoving reports for each targeted actuator whether it is busy.
func (c *Chain) IsMoving(ctx context.Context, target Target) ([]bool, error) {
	status, err := c.GetStatus(ctx, target)
	if err != nil {
		return nil, err
	}

	moving := make([]bool, len(status))
	for i, s := range status {
		moving[i] = s != 0
	}

	return moving, nil
}

// Echo sends data to the targeted actuators and returns what they echo.
func (c *Chain) Echo(ctx context.Context, target Target, data int32) ([]int32, error) {
	return c.Query(ctx, frame.EchoData, target, data)
}

func checkStoredPosition(op string, addr int) error {
	if addr < 0 || addr > MaxStoredPosition {
		return paramError(op, fmt.Errorf("%w: %d", ErrStoredPositionOutOfRange, addr))
	}

	return nil
}

// StorePosition saves the current position in stored position slot addr.
func (c *Chain) StorePosition(ctx context.Context, target Target, addr int) error {
	if err := checkStoredPosition("StorePosition", addr); err != nil {
		return err
	}

	return c.Execute(ctx, frame.StorePosition, target, int32(addr)) //nolint:gosec // range checked
}

// GetStoredPosition returns the position saved in slot addr, in microsteps.
func (c *Chain) GetStoredPosition(ctx context.Context, target Target, addr int) ([]int32, error) {
	if err := checkStoredPosition("GetStoredPosition", addr); err != nil {
		return nil, err
	}

	return c.Query(ctx, frame.ReturnStoredPosition, target, int32(addr)) //nolint:gosec // range checked
}

// MoveToStoredPosition moves the targeted actuators to the position saved in slot addr.
func (c *Chain) MoveToStoredPosition(ctx context.Context, target Target, addr int) error {
	if err := checkStoredPosition("MoveToStoredPosition", addr); err != nil {
		return err
	}

	return c.Execute(ctx, frame.MoveToStoredPosition, target, int32(addr)) //nolint:gosec // range checked
}
