// Package fault holds the error taxonomy shared by every stage of the
// filter verification pipeline.
//
// Callers branch on Kind (or errors.Is against the sentinels below) and never
// on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable error category.
type Kind string

const (
	// KindConfig covers zero-sized filters or extents, undefined radii and
	// other parameter problems detected before any arithmetic runs.
	KindConfig Kind = "Configuration"
	// KindLength covers vectors whose lengths contradict the operator shape.
	KindLength Kind = "LengthMismatch"
	// KindVerification is the Freivalds identity failing. It is terminal.
	KindVerification Kind = "VerificationFailure"
)

// Error is the structured error type returned by the pipeline packages.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Sentinels usable with errors.Is.
var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrLength       = &Error{Kind: KindLength}
	ErrVerification = &Error{Kind: KindVerification}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error of the same Kind, so the sentinels above work with
// errors.Is regardless of Op or Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Config returns a KindConfig error.
func Config(op, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Length returns a KindLength error.
func Length(op, what string, got, want int) error {
	return &Error{Kind: KindLength, Op: op, Message: fmt.Sprintf("%s has length %d, want %d", what, got, want)}
}

// Verification returns a KindVerification error.
func Verification(op, format string, args ...any) error {
	return &Error{Kind: KindVerification, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
