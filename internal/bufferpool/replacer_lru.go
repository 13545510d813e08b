package bufferpool

import "sync"

var _ Replacer[FrameID] = (*LRUReplacer[FrameID])(nil)

// Sentinel slots of the node arena.
const (
	lruHead = 0 // most recently inserted side
	lruTail = 1 // least recently inserted side
)

type lruNode[T comparable] struct {
	val        T
	prev, next int
}

// LRUReplacer evicts the handle least recently passed to Insert.
//
// Entries form a doubly linked list threaded through an arena of nodes by
// index, so no node holds a pointer to another. Released slots are recycled.
type LRUReplacer[T comparable] struct {
	mu    sync.Mutex
	nodes []lruNode[T]
	index map[T]int
	spare []int
}

func NewLRUReplacer[T comparable](capacity int) *LRUReplacer[T] {
	if capacity < 0 {
		capacity = 0
	}
	r := &LRUReplacer[T]{
		nodes: make([]lruNode[T], 2, capacity+2),
		index: make(map[T]int, capacity),
	}
	r.nodes[lruHead] = lruNode[T]{prev: -1, next: lruTail}
	r.nodes[lruTail] = lruNode[T]{prev: lruHead, next: -1}
	return r
}

func (r *LRUReplacer[T]) Insert(val T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.index[val]
	if ok {
		r.unlink(n)
	} else {
		n = r.alloc(val)
		r.index[val] = n
	}
	r.pushFront(n)
}

func (r *LRUReplacer[T]) Victim() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.nodes[lruTail].prev
	if n == lruHead {
		var zero T
		return zero, false
	}
	val := r.nodes[n].val
	r.drop(n)
	return val, true
}

func (r *LRUReplacer[T]) Erase(val T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.index[val]
	if !ok {
		return false
	}
	r.drop(n)
	return true
}

func (r *LRUReplacer[T]) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

func (r *LRUReplacer[T]) alloc(val T) int {
	if k := len(r.spare); k > 0 {
		n := r.spare[k-1]
		r.spare = r.spare[:k-1]
		r.nodes[n].val = val
		return n
	}
	r.nodes = append(r.nodes, lruNode[T]{val: val})
	return len(r.nodes) - 1
}

func (r *LRUReplacer[T]) pushFront(n int) {
	first := r.nodes[lruHead].next
	r.nodes[n].prev = lruHead
	r.nodes[n].next = first
	r.nodes[first].prev = n
	r.nodes[lruHead].next = n
}

func (r *LRUReplacer[T]) unlink(n int) {
	prev, next := r.nodes[n].prev, r.nodes[n].next
	r.nodes[prev].next = next
	r.nodes[next].prev = prev
	r.nodes[n].prev, r.nodes[n].next = -1, -1
}

// drop unlinks n, forgets its value and recycles the slot.
func (r *LRUReplacer[T]) drop(n int) {
	r.unlink(n)
	delete(r.index, r.nodes[n].val)
	var zero T
	r.nodes[n].val = zero
	r.spare = append(r.spare, n)
}
