package reader

import (
	"context"
	"io"
)

// Replayer makes a single-pass reader restartable by recording every item
// produced on the first pass. Repeat passes are served from the recording,
// so the wrapped reader is consumed exactly once no matter how often Reset
// is called.
type Replayer[T any] struct {
	src   Reader[T]
	cache []T
	pos   int
	done  bool // src returned io.EOF
	once  closeOnce
}

// Replay wraps src in a replay buffer.
func Replay[T any](src Reader[T]) *Replayer[T] {
	return &Replayer[T]{src: src}
}

// Read serves the next item from the recording, pulling from the wrapped
// reader only when the cursor is past the end of the recording and the
// first pass has not finished. Errors from the wrapped reader are returned
// without being recorded.
func (r *Replayer[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.pos < len(r.cache) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		item := r.cache[r.pos]
		r.pos++
		return item, nil
	}
	if r.done {
		return zero, io.EOF
	}

	item, err := r.src.Read(ctx)
	if err == io.EOF {
		r.done = true
		return zero, io.EOF
	}
	if err != nil {
		return zero, err
	}
	r.cache = append(r.cache, item)
	r.pos++
	return item, nil
}

// Reset rewinds the cursor to the start of the recording. The recording and
// the wrapped reader are left untouched.
func (r *Replayer[T]) Reset(_ context.Context) error {
	r.pos = 0
	return nil
}

// Index returns the cursor position.
func (r *Replayer[T]) Index() int { return r.pos }

// Len returns the recording length once the first pass is complete, and the
// wrapped reader's Len before that.
func (r *Replayer[T]) Len() (int, bool) {
	if r.done {
		return len(r.cache), true
	}
	return r.src.Len()
}

// Recorded returns the number of items recorded so far.
func (r *Replayer[T]) Recorded() int { return len(r.cache) }

// Complete reports whether the wrapped reader has been read to the end.
func (r *Replayer[T]) Complete() bool { return r.done }

// Close closes the wrapped reader. The recording stays readable.
func (r *Replayer[T]) Close() error { return r.once.close(r.src.Close) }
