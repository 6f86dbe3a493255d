// Package apperr defines the error taxonomy shared across the sync engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested entity does not exist (locally or on
	// the remote). A 404 from the remote host maps here on read; list
	// operations translate it into an empty result instead.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication means the remote host rejected our credentials
	// (401/403).
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotConfigured means an explicit push was requested while the
	// remote target (owner/repo) is not set.
	ErrNotConfigured = errors.New("remote repository not configured")
	// ErrDecoding means a remote payload could not be decoded.
	ErrDecoding = errors.New("decoding failed")
	// ErrEncoding means local content could not be serialized.
	ErrEncoding = errors.New("encoding failed")
)

// APIError is returned when the remote content API answers with an
// unexpected status code.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote api: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api: unexpected status %d: %s", e.StatusCode, e.Detail)
}

// IsAuth reports whether err is an authentication failure, either the
// sentinel or an APIError with a 401/403 status.
func IsAuth(err error) bool {
	if errors.Is(err, ErrAuthentication) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 401 || ae.StatusCode == 403
	}
	return false
}
