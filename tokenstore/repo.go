package tokenstore

import "github.com/pkg/errors"

// Repo persists the single session token for an app installation. At most
// one token exists per store; Save overwrites any previous value.
//
// Absence of a token is a normal state, reported through Get's ok result,
// never through its error. A non-nil error from any operation is a
// *StorageError and means the underlying storage misbehaved, which callers
// must not confuse with "logged out".
type Repo interface {
	// Save writes the token, replacing any existing one.
	Save(token string) error

	// Get returns the stored token. ok is false when no token is stored.
	Get() (token string, ok bool, err error)

	// Remove deletes the token. Removing an absent token is not an error.
	Remove() error
}

// StorageError reports a fault in the underlying token storage.
type StorageError struct {
	Op    string // "save", "get" or "remove"
	Cause error
}

func (e *StorageError) Error() string {
	msg := e.Op + " token"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
