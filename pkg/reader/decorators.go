package reader

import "context"

// Mapped converts each item of a wrapped reader with a function.
type Mapped[T, U any] struct {
	src   Reader[T]
	fn    func(T) (U, error)
	index int
	once  closeOnce
}

// Map wraps src so every item is converted by fn. The mapping is 1:1, so Len
// mirrors src. An error from fn is returned as-is and does not advance Index.
func Map[T, U any](src Reader[T], fn func(T) (U, error)) *Mapped[T, U] {
	return &Mapped[T, U]{src: src, fn: fn}
}

// Read returns the converted next item.
func (m *Mapped[T, U]) Read(ctx context.Context) (U, error) {
	var zero U
	item, err := m.src.Read(ctx)
	if err != nil {
		return zero, err
	}
	out, err := m.fn(item)
	if err != nil {
		return zero, err
	}
	m.index++
	return out, nil
}

// Reset resets the wrapped reader.
func (m *Mapped[T, U]) Reset(ctx context.Context) error {
	if err := m.src.Reset(ctx); err != nil {
		return err
	}
	m.index = 0
	return nil
}

func (m *Mapped[T, U]) Index() int { return m.index }

func (m *Mapped[T, U]) Len() (int, bool) { return m.src.Len() }

// Close closes the wrapped reader.
func (m *Mapped[T, U]) Close() error { return m.once.close(m.src.Close) }

// Filtered yields only the items of a wrapped reader accepted by a predicate.
type Filtered[T any] struct {
	src     Reader[T]
	keep    func(T) bool
	index   int
	dropped int
	once    closeOnce
}

// Filter wraps src so only items for which keep returns true are produced.
// The number of surviving items cannot be known ahead of time, so Len
// always reports false.
func Filter[T any](src Reader[T], keep func(T) bool) *Filtered[T] {
	return &Filtered[T]{src: src, keep: keep}
}

// Read pulls from the wrapped reader until an item is accepted.
func (f *Filtered[T]) Read(ctx context.Context) (T, error) {
	for {
		item, err := f.src.Read(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if f.keep(item) {
			f.index++
			return item, nil
		}
		f.dropped++
	}
}

// Reset resets the wrapped reader and the drop counter.
func (f *Filtered[T]) Reset(ctx context.Context) error {
	if err := f.src.Reset(ctx); err != nil {
		return err
	}
	f.index = 0
	f.dropped = 0
	return nil
}

func (f *Filtered[T]) Index() int { return f.index }

func (f *Filtered[T]) Len() (int, bool) { return 0, false }

// Dropped returns how many items were rejected by the predicate.
func (f *Filtered[T]) Dropped() int { return f.dropped }

// Close closes the wrapped reader.
func (f *Filtered[T]) Close() error { return f.once.close(f.src.Close) }
