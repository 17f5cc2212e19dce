package reader

import (
	"container/heap"
	"context"
	"io"
)

// Merged combines multiple readers into a single stream ordered by a
// comparison function. Each input is expected to be ordered already; the
// merge then yields a globally ordered sequence.
type Merged[T any] struct {
	readers []Reader[T]
	heap    *itemHeap[T]
	// primed[i] is set once reader i has contributed its head item, or
	// turned out to be empty.
	primed      []bool
	initialized bool
	index       int
	once        closeOnce
}

// Merge creates a reader that merges readers using less. Items that compare
// equal are returned in reader order.
func Merge[T any](less func(a, b T) bool, readers ...Reader[T]) *Merged[T] {
	return &Merged[T]{
		readers: readers,
		heap:    &itemHeap[T]{less: less},
		primed:  make([]bool, len(readers)),
	}
}

// Read returns the smallest pending item across all readers.
// Returns io.EOF when all readers are exhausted.
func (m *Merged[T]) Read(ctx context.Context) (T, error) {
	var zero T

	// Initialize heap on first call
	if !m.initialized {
		if err := m.initHeap(ctx); err != nil {
			return zero, err
		}
		m.initialized = true
	}

	if m.heap.Len() == 0 {
		return zero, io.EOF
	}

	item := heap.Pop(m.heap).(*heapItem[T])

	// Refill from the same reader before handing the item out, so a failing
	// reader does not lose the popped item.
	next, err := m.readers[item.readerIdx].Read(ctx)
	switch {
	case err == nil:
		heap.Push(m.heap, &heapItem[T]{value: next, readerIdx: item.readerIdx})
	case err != io.EOF:
		heap.Push(m.heap, item)
		return zero, err
	}

	m.index++
	return item.value, nil
}

// initHeap reads the first item from each reader not yet primed. When a
// reader fails, the heads already pulled stay queued and the next call
// resumes with the failing reader.
func (m *Merged[T]) initHeap(ctx context.Context) error {
	for i, r := range m.readers {
		if m.primed[i] {
			continue
		}
		value, err := r.Read(ctx)
		if err == io.EOF {
			m.primed[i] = true
			continue
		}
		if err != nil {
			return err
		}
		heap.Push(m.heap, &heapItem[T]{value: value, readerIdx: i})
		m.primed[i] = true
	}
	return nil
}

// Reset resets every input reader and restarts the merge.
func (m *Merged[T]) Reset(ctx context.Context) error {
	for _, r := range m.readers {
		if err := r.Reset(ctx); err != nil {
			return err
		}
	}
	m.heap.items = m.heap.items[:0]
	clear(m.primed)
	m.initialized = false
	m.index = 0
	return nil
}

func (m *Merged[T]) Index() int { return m.index }

// Len returns the sum of the input lengths when all of them are known.
func (m *Merged[T]) Len() (int, bool) {
	total := 0
	for _, r := range m.readers {
		n, ok := r.Len()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// Close releases all input readers.
func (m *Merged[T]) Close() error {
	return m.once.close(func() error {
		var firstErr error
		for _, r := range m.readers {
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

// heapItem wraps a value with the index of the reader it came from.
type heapItem[T any] struct {
	value     T
	readerIdx int
}

// itemHeap implements heap.Interface for ordered merging.
type itemHeap[T any] struct {
	items []*heapItem[T]
	less  func(a, b T) bool
}

func (h *itemHeap[T]) Len() int { return len(h.items) }

func (h *itemHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.readerIdx < b.readerIdx
}

func (h *itemHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *itemHeap[T]) Push(x any) {
	h.items = append(h.items, x.(*heapItem[T]))
}

func (h *itemHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[0 : n-1]
	return item
}
