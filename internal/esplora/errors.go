package esplora

import (
	"errors"
	"fmt"
)

// ErrMissingParam indicates a required path placeholder had no value. The
// request is never sent in that case.
var ErrMissingParam = errors.New("esplora: missing required parameter")

// TransportError wraps a failure below HTTP: connection, DNS, TLS or a
// context cancellation. It is always surfaced and never retried.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("esplora: %s: transport: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx HTTP response. The body is kept as text and is
// never decoded as a domain value.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("esplora: server returned HTTP %d: %s", e.Status, e.Body)
}

// InvalidError is a well-formed response whose decoded value violates the
// schema, carrying the name of the offending field.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("esplora: invalid response field %q: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...interface{}) error {
	return &InvalidError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
