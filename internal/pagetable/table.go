// Package pagetable provides the residency index of the buffer pool: a
// thread-safe map from page id to the frame currently holding it.
package pagetable

import "sync"

// Table is safe for concurrent use. It has its own lock, independent of any
// lock its caller holds.
type Table[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func New[K comparable, V any](capacity int) *Table[K, V] {
	return &Table[K, V]{m: make(map[K]V, capacity)}
}

func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[key]
	return v, ok
}

// Insert maps key to val, replacing any previous mapping for key.
func (t *Table[K, V]) Insert(key K, val V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key] = val
}

// Remove deletes key and reports whether it was present.
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.m[key]
	delete(t.m, key)
	return ok
}

func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
