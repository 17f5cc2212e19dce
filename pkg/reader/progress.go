package reader

import (
	"context"
	"io"
	"iter"
)

// Progress returns the percentage of items read, from 0 to 100.
// The second result is false when the reader does not know its length,
// in which case progress cannot be calculated. An empty reader of known
// length reports 100.
func Progress[T any](r Reader[T]) (float64, bool) {
	n, ok := r.Len()
	if !ok {
		return 0, false
	}
	if n == 0 {
		return 100, true
	}
	return float64(r.Index()) / float64(n) * 100, true
}

// All returns a forward-only sequence over the remaining items of r.
// Iteration stops after io.EOF. Any other error is yielded once, paired with
// the zero value, and ends the sequence. The sequence does not reset r, so
// ranging over it a second time continues where the first range stopped;
// wrap r with Replay first when the items must be traversed again.
func All[T any](ctx context.Context, r Reader[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := r.Read(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect reads r to the end and returns every item.
func Collect[T any](ctx context.Context, r Reader[T]) ([]T, error) {
	var items []T
	for item, err := range All(ctx, r) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
