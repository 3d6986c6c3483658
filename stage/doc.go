// Package stage composes actuators of one or more chains into logical X, Y
// and Z axes.
//
// A Stage owns a set of chains keyed by the serial number of their first
// actuator. Each axis binds to one actuator and carries a microstep size,
// the length of one microstep in user units, and an optional travel limit
// used by the percent helpers.
//
// Positions are converted with
//
//	native = round(position / microstepSize)
//
// and speeds with
//
//	native = round(speed / (microstepSize * SpeedResolution))
//
// Operations on different chains are independent exchanges; a Stage makes
// no attempt to take a consistent snapshot across chains.
package stage
