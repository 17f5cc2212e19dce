package proxy

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput means a line did not fit the configured pattern.
	ErrMalformedInput = errors.New("malformed input")

	// ErrGroupNotMatched means a group declared in the pattern did not take
	// part in an otherwise successful match.
	ErrGroupNotMatched = fmt.Errorf("%w: declared group did not match", ErrMalformedInput)

	// ErrInvalidPort means the captured port is not a number in 1..65535.
	ErrInvalidPort = fmt.Errorf("%w: invalid port", ErrMalformedInput)

	// ErrMissingField means the pattern cannot produce a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrUnknownScheme means the scheme has no default port.
	ErrUnknownScheme = errors.New("unknown scheme")
)

// ParseError reports a line that could not be turned into a Proxy.
type ParseError struct {
	// Line is the raw text that failed to parse.
	Line string
	// Position is the 1-based position of the line in the underlying reader.
	Position int
	// Err is the cause.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed for line %d %q: %v", e.Position, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
