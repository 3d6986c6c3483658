package stage

import (
	"fmt"
	"math"
	"strings"
)

// Axis names a logical axis of a stage.
type Axis int

const (
	X Axis = iota
	Y
	Z

	// NumAxes is the number of logical axes.
	NumAxes = 3
)

// Axes lists every axis in order.
var Axes = [NumAxes]Axis{X, Y, Z}

// SpeedResolution is the speed, in microsteps per second, of one native
// speed unit.
const SpeedResolution = 9.375

// DefaultMicrostepSize is the microstep size of a freshly bound axis.
const DefaultMicrostepSize = 1.0

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Valid reports whether a is one of X, Y or Z.
func (a Axis) Valid() bool {
	return a >= X && a <= Z
}

// ParseAxis parses an axis name, case-insensitively.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, s)
	}
}

// Positions holds one value per axis, indexed by Axis.
type Positions [NumAxes]float64

// Get returns the value of axis a.
func (p Positions) Get(a Axis) float64 { return p[a] }

// Binding describes the actuator an axis is bound to.
type Binding struct {
	SerialNumber  uint32
	Actuator      int
	MicrostepSize float64
	// TravelLimit is the axis length in user units; 0 when unset.
	TravelLimit float64
}

// HasTravelLimit reports whether a travel limit is set.
func (b Binding) HasTravelLimit() bool { return b.TravelLimit > 0 }

func (b Binding) toNativePosition(p float64) (int32, error) {
	return toNative(p / b.MicrostepSize)
}

func (b Binding) toNativeSpeed(v float64) (int32, error) {
	return toNative(v / (b.MicrostepSize * SpeedResolution))
}

func (b Binding) fromNativePosition(n int32) float64 {
	return float64(n) * b.MicrostepSize
}

func (b Binding) fromNativeSpeed(n int32) float64 {
	return float64(n) * b.MicrostepSize * SpeedResolution
}

func toNative(v float64) (int32, error) {
	r := math.Round(v)
	if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %g", ErrValueOutOfRange, v)
	}

	return int32(r), nil
}
