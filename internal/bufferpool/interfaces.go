package bufferpool

import "github.com/tuannm99/novabuf/internal/storage"

// Replacer tracks the handles that may be evicted and picks victims among them.
type Replacer[T comparable] interface {
	// Insert marks val evictable. Inserting a tracked val refreshes it.
	Insert(val T)
	// Victim removes and returns the policy's choice, false if nothing is tracked.
	Victim() (T, bool)
	// Erase stops tracking val and reports whether it was tracked.
	Erase(val T) bool
	Size() int
}

// LogManager is the write-ahead log attached to a pool. It may be nil.
type LogManager interface {
	Flush() error
}

type Manager interface {
	FetchPage(pageID storage.PageID) (*Frame, error)
	UnpinPage(pageID storage.PageID, isDirty bool) error
	FlushPage(pageID storage.PageID) error
	DeletePage(pageID storage.PageID) error
	NewPage() (storage.PageID, *Frame, error)
	FlushAll() error
}
