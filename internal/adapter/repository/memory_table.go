package repository

import (
	stderrors "errors"
	"sync"

	"pasarmarket/internal/domain/repository"
)

// memoryTable is a mutex-guarded map of records. Values are cloned on the
// way in and out so callers never share memory with the store.
type memoryTable[T any] struct {
	mu    sync.RWMutex
	rows  map[string]T
	order []string
	clone func(T) T
}

func newMemoryTable[T any](clone func(T) T) *memoryTable[T] {
	return &memoryTable[T]{
		rows:  make(map[string]T),
		clone: clone,
	}
}

// insert stores v under id and reports false when id already exists.
func (t *memoryTable[T]) insert(id string, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[id]; exists {
		return false
	}
	t.rows[id] = t.clone(v)
	t.order = append(t.order, id)
	return true
}

func (t *memoryTable[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(v), true
}

// mutate holds the write lock across read, fn and write, making it a compare-and-set.
func (t *memoryTable[T]) mutate(id string, fn func(T) error) (T, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	current, ok := t.rows[id]
	if !ok {
		return zero, false, nil
	}

	working := t.clone(current)
	if err := fn(working); err != nil {
		if stderrors.Is(err, repository.ErrSkipWrite) {
			return t.clone(current), true, nil
		}
		return zero, true, err
	}
	t.rows[id] = t.clone(working)
	return working, true, nil
}

// scan returns clones of the rows accepted by keep, in insertion order.
func (t *memoryTable[T]) scan(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []T
	for _, id := range t.order {
		v := t.rows[id]
		if keep == nil || keep(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}
