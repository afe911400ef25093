package model

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures.
type Kind string

// Failure kinds.
const (
	KindNotFound          Kind = "not_found"
	KindAlreadyScrapped   Kind = "already_scrapped"
	KindAlreadyApplying   Kind = "already_applying"
	KindNotHeld           Kind = "not_held"
	KindInvalidTransition Kind = "invalid_transition"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidInput      Kind = "invalid_input"
	KindConflict          Kind = "conflict"
	KindIDCollision       Kind = "id_collision"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindCanceled          Kind = "canceled"
)

// Error is a typed ledger failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyScrapped   = &Error{Kind: KindAlreadyScrapped}
	ErrAlreadyApplying   = &Error{Kind: KindAlreadyApplying}
	ErrNotHeld           = &Error{Kind: KindNotHeld}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrIDCollision       = &Error{Kind: KindIDCollision}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrCanceled          = &Error{Kind: KindCanceled}
)

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind around a cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the caller-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
