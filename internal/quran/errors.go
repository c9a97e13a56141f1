package quran

import (
	"errors"
	"fmt"
)

// FetchError is returned for any failed request to the content provider:
// transport failure, non-success status, or an undecodable body.
type FetchError struct {
	// Op names the client operation, e.g. "list chapters".
	Op string
	// URL is the request path relative to the base URL.
	URL string
	// Status is the HTTP status, or zero when no response arrived.
	Status int
	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err (or any error in its chain) is a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

var (
	errStatus   = errors.New("unexpected response status")
	errEnvelope = errors.New("provider reported failure")
)
