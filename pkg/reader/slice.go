package reader

import (
	"context"
	"io"
)

// SliceReader reads items from an in-memory slice.
type SliceReader[T any] struct {
	items []T
	index int
}

// FromSlice creates a reader over items. The slice is not copied.
func FromSlice[T any](items []T) *SliceReader[T] {
	return &SliceReader[T]{items: items}
}

// Read returns the next item, or io.EOF once the slice is exhausted.
func (r *SliceReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.index >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.index]
	r.index++
	return item, nil
}

// Reset rewinds to the beginning of the slice.
func (r *SliceReader[T]) Reset(_ context.Context) error {
	r.index = 0
	return nil
}

// Index returns the number of items read.
func (r *SliceReader[T]) Index() int { return r.index }

// Len returns the slice length.
func (r *SliceReader[T]) Len() (int, bool) { return len(r.items), true }

// Close is a no-op for SliceReader.
func (r *SliceReader[T]) Close() error { return nil }
