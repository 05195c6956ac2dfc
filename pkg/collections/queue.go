package collections

// FIFOQueue is an unsynchronized first-in first-out queue. Callers that share
// it between goroutines guard it with their own lock.
type FIFOQueue[T any] struct {
	items []T
}

func NewFIFOQueue[T any]() *FIFOQueue[T] {
	return &FIFOQueue[T]{}
}

func (f *FIFOQueue[T]) Enqueue(item T) {
	f.items = append(f.items, item)
}

// return false on the second returned values if queue is empty
func (f *FIFOQueue[T]) Dequeue() (T, bool) {
	var zero T
	if len(f.items) == 0 {
		return zero, false
	}
	first := f.items[0]
	// release the reference held by the backing array
	f.items[0] = zero
	f.items = f.items[1:]
	if len(f.items) == 0 {
		f.items = nil
	}
	return first, true
}

func (f *FIFOQueue[T]) Peek() (T, bool) {
	var zero T
	if len(f.items) == 0 {
		return zero, false
	}
	return f.items[0], true
}

func (f *FIFOQueue[T]) Size() int {
	return len(f.items)
}
