package emu

import "errors"

// Error kinds surfaced by the execution engine. Call sites wrap these
// with address or operand context; callers discriminate with errors.Is.
var (
	// ErrBadAddress marks a memory access outside [0, memory size).
	ErrBadAddress = errors.New("bad address")

	// ErrAccessViolation marks an access denied by the covering
	// segment's permission mask, or an address no segment covers.
	ErrAccessViolation = errors.New("access violation")

	// ErrDivisionByZero marks a DIV or MOD with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrMaxInstructions marks a run stopped by the instruction limit.
	ErrMaxInstructions = errors.New("max instructions reached")
)
