// Package tterr defines the domain-level error kinds shared by every
// component, so that the HTTP surface (internal/httpserver) has one place
// to map failures onto status codes instead of each handler guessing.
package tterr

import "errors"

// Kind identifies the category of a domain error, per spec §7.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindAuth       Kind = "auth_error"
	KindAuthz      Kind = "authz_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindRateLimit  Kind = "rate_limited"
	KindTransient  Kind = "transient_error"
	KindFatal      Kind = "fatal_error"
)

// Error is a typed domain error. Handlers map Kind to an HTTP status;
// Message is safe to show to the client, Cause is logged but never exposed.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Validation(msg string) *Error          { return new(KindValidation, msg, nil) }
func Auth(msg string) *Error                { return new(KindAuth, msg, nil) }
func Authz(msg string) *Error               { return new(KindAuthz, msg, nil) }
func NotFound(msg string) *Error            { return new(KindNotFound, msg, nil) }
func Conflict(msg string) *Error            { return new(KindConflict, msg, nil) }
func RateLimited(msg string) *Error         { return new(KindRateLimit, msg, nil) }
func Transient(msg string, cause error) *Error { return new(KindTransient, msg, cause) }
func Fatal(msg string, cause error) *Error  { return new(KindFatal, msg, cause) }

// As extracts a *Error from err, returning ok=false if err is not one
// (or wraps one) of our own kind.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindFatal for unrecognized
// errors so that callers fail closed (generic 500) rather than leak detail.
func KindOf(err error) Kind {
	if te, ok := As(err); ok {
		return te.Kind
	}
	return KindFatal
}
