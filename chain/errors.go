package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-zaber/frame"
)

// Sentinel errors. Errors returned by Chain methods are *Error values
// wrapping one of these; test for them with errors.Is.
var (
	// Parameter errors.
	ErrInvalidActuator          = errors.New("chain: invalid actuator index")
	ErrAliasOutOfRange          = errors.New("chain: alias out of range [0, 98]")
	ErrStoredPositionOutOfRange = errors.New("chain: stored position address out of range [0, 15]")
	ErrCurrentOutOfRange        = errors.New("chain: current out of range [1, 100]")
	ErrModeBitOutOfRange        = errors.New("chain: mode bit out of range [0, 31]")
	ErrRegisterOutOfRange       = errors.New("chain: memory register out of range [0, 127]")
	ErrSerialNumberOutOfRange   = errors.New("chain: serial number exceeds 24 bits")

	// Structural protocol errors, retried by Query.
	ErrActuatorAddress   = errors.New("chain: reply from actuator outside the chain")
	ErrChainSizeMismatch = errors.New("chain: reply count does not match chain size")
	ErrReplyOpcode       = errors.New("chain: reply opcode does not match the command")

	// Terminal errors.
	ErrProtocol         = errors.New("chain: protocol error, retries exhausted")
	ErrChainSizeUnknown = errors.New("chain: chain size unknown, no valid probe reply")

	// Transport errors.
	ErrClosed = errors.New("chain: chain closed")
)

// Kind classifies an Error.
type Kind int

const (
	// KindParameter marks invalid arguments rejected before any wire exchange.
	KindParameter Kind = iota + 1
	// KindStructural marks a reply that failed validation. Query retries these.
	KindStructural
	// KindTerminal marks a query whose retries were exhausted.
	KindTerminal
	// KindTransport marks a failure of the underlying link.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindStructural:
		return "structural"
	case KindTerminal:
		return "terminal"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the structured error returned by Chain operations.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "GetAlias".
	Op string
	// Port is the transport port name, when known.
	Port string
	// Opcode is the command of the failed exchange.
	Opcode frame.Opcode
	// Actuator is the offending actuator index, or -1.
	Actuator int
	// Expected and Actual hold reply record counts of a mismatched exchange.
	// Both are meaningful only when Expected > 0.
	Expected int
	Actual   int
	// Attempts is the number of exchanges made before a terminal failure.
	Attempts int
	// StaleSize is set on a terminal failure whose every attempt returned the
	// same record count different from the cached chain size.
	StaleSize bool
	// Err is the wrapped cause.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("chain: ")
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Port != "" {
		b.WriteString(" on ")
		b.WriteString(e.Port)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Actuator >= 0 {
		fmt.Fprintf(&b, " (actuator %d)", e.Actuator)
	}
	if e.Expected > 0 {
		fmt.Fprintf(&b, " (expected %d replies, got %d)", e.Expected, e.Actual)
	}
	if e.Kind == KindTerminal && errors.Is(e.Err, ErrProtocol) {
		b.WriteString("; actuators may be miswired or misnumbered, check cabling and call Renumber")
	}
	if e.StaleSize {
		b.WriteString("; the cached chain size looks stale, call ProbeChainSize")
	}

	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

// IsParameterError reports whether err was rejected before any wire exchange.
func IsParameterError(err error) bool { return KindOf(err) == KindParameter }

// IsTerminalError reports whether err is a query with exhausted retries.
func IsTerminalError(err error) bool { return KindOf(err) == KindTerminal }

func paramError(op string, err error) *Error {
	return &Error{Kind: KindParameter, Op: op, Actuator: -1, Err: err}
}
