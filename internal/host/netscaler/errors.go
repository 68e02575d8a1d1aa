package netscaler

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers unreachable targets, TLS failures and timeouts.
	ErrNetwork = errors.New("network failure")
	// ErrProtocol covers non-200 responses.
	ErrProtocol = errors.New("protocol failure")
	// ErrMissingField covers successful responses without a version string.
	ErrMissingField = errors.New("missing version field")
)

type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

type ProtocolError struct {
	URL        string
	StatusCode int
	// Body is a truncated copy of the response for verbose diagnostics.
	Body string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("request to %s returned status code %d", e.URL, e.StatusCode)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
