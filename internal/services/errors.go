package services

import "errors"

// Error kinds. Every error a service returns to a handler unwraps to one of these.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrMismatch        = errors.New("mismatch")
	ErrUpstream        = errors.New("upstream failure")
)

// Error is a client-facing failure: Msg is safe to show, Kind drives the status code.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrEmailTaken         = newError(ErrConflict, "Account already exists. Please log in.")
	ErrGoogleIDTaken      = newError(ErrConflict, "Google account is already linked to another user")
	ErrInvalidCredentials = newError(ErrUnauthorized, "Invalid credentials")
	ErrIdentityNotFound   = newError(ErrNotFound, "User not found")
	ErrIdentityInactive   = newError(ErrUnauthorized, "Account is deactivated")
	ErrAlreadyVerified    = newError(ErrInvalidArgument, "User is already verified")

	ErrOTPNotFound = newError(ErrNotFound, "No OTP found")
	ErrOTPExpired  = newError(ErrExpired, "OTP has expired")
	ErrOTPMismatch = newError(ErrMismatch, "Invalid OTP")

	ErrTokenInvalid = newError(ErrUnauthorized, "Invalid token")
	ErrTokenExpired = newError(ErrExpired, "Token has expired")

	ErrPasswordTooShort = newError(ErrInvalidArgument, "Please provide a password with at least 6 characters.")
	ErrSelfMessage      = newError(ErrInvalidArgument, "Cannot send a message to yourself")
	ErrEmptyMessage     = newError(ErrInvalidArgument, "Message content is required")
	ErrReceiverNotFound = newError(ErrNotFound, "Receiver not found")

	ErrProviderExchange = newError(ErrUpstream, "Google sign-in failed")
	ErrMailDelivery     = newError(ErrUpstream, "Email delivery failed")
)

// invalid builds an ad-hoc InvalidArgument error.
func invalid(msg string) error {
	return newError(ErrInvalidArgument, msg)
}
