// Package streampipeerr defines the error kinds shared across the streaming
// middleware pipeline. Every error surfaced by a component in this module is
// either one of these kinds or a wrapped provider error; callers can use
// errors.Is/errors.As against the sentinel Kind values to branch on failure
// class without string matching.
package streampipeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. See spec §7 for the full taxonomy.
type Kind string

const (
	// KindCancelled marks a cooperative abort. Always propagates; never converted
	// into another kind.
	KindCancelled Kind = "cancelled"

	// KindInvariantViolated marks a programmer error, such as a Composite or
	// ToolsCallAggregate message appearing where only singular messages are
	// permitted. Fatal; callers should not retry.
	KindInvariantViolated Kind = "invariant_violated"

	// KindArgumentInvalid marks a missing or malformed required input, such as a
	// function map with no entry for a declared contract.
	KindArgumentInvalid Kind = "argument_invalid"

	// KindToolUseParsingError marks a failure of the natural tool-use parser to
	// produce a valid call after exhausting any configured fallback.
	KindToolUseParsingError Kind = "tool_use_parsing_error"

	// KindProviderError wraps any failure returned by an inner Agent.
	KindProviderError Kind = "provider_error"
)

// Error is the concrete error type used throughout the pipeline. Message is a
// human-readable description; Inner, when non-nil, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Inner   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes Inner so errors.Is/errors.As traverse into the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is an *Error with the same Kind, letting callers
// write errors.Is(err, streampipeerr.New(streampipeerr.KindCancelled, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping inner.
func Wrap(kind Kind, message string, inner error) *Error {
	return &Error{Kind: kind, Message: message, Inner: inner}
}

// Cancelled reports whether err represents a cooperative cancellation.
func Cancelled(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindCancelled
}
