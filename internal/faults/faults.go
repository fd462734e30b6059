package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// Configuration marks invalid or unknown configuration: an unknown scorer
	// algorithm, an alert rule referencing an unknown metric, bad config values.
	Configuration Kind = iota + 1

	// Data marks unusable input: an empty training range, calibration with
	// no scores, required raw columns entirely absent.
	Data

	// State marks an operation invoked out of order: transform before fit,
	// detect before train.
	State

	// Compute marks a scorer failure. Propagated to the caller, never retried
	// or masked by the pipeline.
	Compute
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Data:
		return "data"
	case State:
		return "state"
	case Compute:
		return "compute"
	}
	return "unknown"
}

// Error is a classified pipeline error. It wraps an underlying cause when
// one exists so errors.Is/As chains keep working.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Configf returns a Configuration error.
func Configf(format string, args ...interface{}) error {
	return &Error{Kind: Configuration, Msg: fmt.Sprintf(format, args...)}
}

// Dataf returns a Data error.
func Dataf(format string, args ...interface{}) error {
	return &Error{Kind: Data, Msg: fmt.Sprintf(format, args...)}
}

// Statef returns a State error.
func Statef(format string, args ...interface{}) error {
	return &Error{Kind: State, Msg: fmt.Sprintf(format, args...)}
}

// Computef wraps a scorer failure as a Compute error.
func Computef(err error, format string, args ...interface{}) error {
	return &Error{Kind: Compute, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err (or anything it wraps) is a faults.Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}

func IsConfiguration(err error) bool { return IsKind(err, Configuration) }
func IsData(err error) bool          { return IsKind(err, Data) }
func IsState(err error) bool         { return IsKind(err, State) }
func IsCompute(err error) bool       { return IsKind(err, Compute) }
