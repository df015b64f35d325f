package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the HTTP layer can pick a status code without
// inspecting messages.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidCredentials
	KindConflict
	KindServiceUnavailable
	KindChatProcessingFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindConflict:
		return "conflict"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindChatProcessingFailed:
		return "chat_processing_failed"
	default:
		return "internal"
	}
}

var (
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Msg: "Unauthorized"}
	ErrForbidden            = &Error{Kind: KindForbidden, Msg: "Forbidden"}
	ErrUserNotFound         = &Error{Kind: KindNotFound, Msg: "User not found"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, Msg: "LOGIN_BAD_CREDENTIALS"}
	ErrUserExists           = &Error{Kind: KindConflict, Msg: "REGISTER_USER_ALREADY_EXISTS"}
	ErrEmailTaken           = &Error{Kind: KindConflict, Msg: "UPDATE_USER_EMAIL_ALREADY_EXISTS"}
	ErrServiceUnavailable   = &Error{Kind: KindServiceUnavailable, Msg: "AI model is not available"}
	ErrChatProcessingFailed = &Error{Kind: KindChatProcessingFailed, Msg: "Failed to process chat"}
)

// Error carries a Kind, a client-safe message and an optional internal cause.
// The cause is for logs only and never rendered to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// Wrap attaches cause to a copy of the sentinel.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

// KindOf reports the Kind of err; anything unclassified is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "Internal Server Error"
}
