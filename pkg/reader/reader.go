// Package reader provides indexed, pull-based readers and the decorators
// that compose them: conversion, filtering, ordered merging and replay.
package reader

import (
	"context"
	"errors"
)

// ErrResetUnsupported is returned by Reset on sources that can only be read once.
var ErrResetUnsupported = errors.New("reset not supported by this reader")

// Reader is a stateful cursor over a sequence of T.
// Implementations must be safe for sequential access (not concurrent).
type Reader[T any] interface {
	// Read returns the next item.
	// Returns io.EOF when no more items are available. Once io.EOF has been
	// returned, every further Read returns io.EOF until Reset is called.
	Read(ctx context.Context) (T, error)

	// Reset rewinds the reader to its first item and sets Index to 0.
	// One-shot sources return ErrResetUnsupported.
	Reset(ctx context.Context) error

	// Index returns the number of items successfully read so far.
	Index() int

	// Len returns the total number of items, or false if it is not known.
	Len() (int, bool)

	// Close releases the underlying resource. Decorators close the reader
	// they wrap. Calling Close more than once is a no-op.
	Close() error
}

// closeOnce tracks whether a decorator already released its wrapped reader.
type closeOnce struct {
	closed bool
}

func (c *closeOnce) close(fn func() error) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return fn()
}
