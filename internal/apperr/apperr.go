// Package apperr carries the application's error taxonomy.
//
// Handlers never branch on database or filesystem error strings; every
// expected failure is classified here once, close to where it happens,
// and the API layer only looks at the Kind when shaping a response.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the coarse category of an application error.
type Kind int

const (
	// KindValidation: bad input (name pattern, disallowed MIME, oversize
	// file). Guaranteed to have caused no side effects.
	KindValidation Kind = iota
	// KindNotFound: the addressed channel or media does not exist.
	KindNotFound
	// KindConflict: a channel with the same (lowercased) name exists.
	KindConflict
	// KindStorage: a filesystem write/read/delete failed.
	KindStorage
	// KindPersistence: a metadata write failed; for uploads this is what
	// triggers the file compensation.
	KindPersistence
)

// Error is a classified application error. Wrapped causes stay reachable
// through errors.Is/As; the Message is safe to show to callers (no
// internal storage or SQL detail).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Storage(msg string, cause error) error {
	return &Error{Kind: KindStorage, Message: msg, Err: cause}
}

func Persistence(msg string, cause error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: cause}
}

// KindOf extracts the Kind from err, or ok=false when err is not an
// application error (i.e. an unexpected internal failure).
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}

// UserMessage returns the caller-safe message for err. Unexpected errors
// collapse to a generic message so no internal detail leaks.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}
