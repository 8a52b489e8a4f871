package authclient

import "github.com/pkg/errors"

// RejectedError means the identity endpoint explicitly refused the request
// (wrong password, duplicate account, revoked provider token). The message
// comes straight from the endpoint and is safe to show to the user.
// Rejections are final; retrying with the same input will not help.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// TransportError means the request never completed: DNS failure, timeout,
// connection refused, or a provider endpoint that could not be reached.
// Transient by nature, safe to retry.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return "identity endpoint unreachable: " + e.Cause.Error()
	}
	return "identity endpoint unreachable"
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsRejected reports whether err wraps a *RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsTransport reports whether err wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
