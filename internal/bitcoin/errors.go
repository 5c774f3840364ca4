package bitcoin

import "errors"

var (
	// ErrTruncated indicates the input ended before a field could be read.
	ErrTruncated = errors.New("bitcoin: truncated input")

	// ErrTrailingBytes indicates bytes remained after a complete structure.
	ErrTrailingBytes = errors.New("bitcoin: trailing bytes after structure")

	// ErrBadEncoding indicates a field violates the consensus encoding rules.
	ErrBadEncoding = errors.New("bitcoin: bad encoding")
)
