package storage

import (
	"log/slog"
	"sync"
)

// MemStore keeps page images in process memory. It follows the same
// allocation rules as DiskManager.
type MemStore struct {
	mu      sync.Mutex
	pages   map[PageID][]byte
	next    PageID
	free    []PageID
	freeSet map[PageID]struct{}
	closed  bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		pages:   make(map[PageID][]byte),
		freeSet: make(map[PageID]struct{}),
	}
}

func (m *MemStore) ReadPage(id PageID, dst []byte) error {
	if err := checkPage(id, dst); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if img, ok := m.pages[id]; ok {
		copy(dst, img)
		return nil
	}
	clear(dst)
	return nil
}

func (m *MemStore) WritePage(id PageID, src []byte) error {
	if err := checkPage(id, src); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	img, ok := m.pages[id]
	if !ok {
		img = make([]byte, PageSize)
		m.pages[id] = img
	}
	copy(img, src)
	if id >= m.next {
		m.next = id + 1
	}
	return nil
}

func (m *MemStore) AllocatePage() (PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return InvalidPageID, ErrClosed
	}

	if len(m.free) > 0 {
		id := m.free[0]
		m.free = m.free[1:]
		delete(m.freeSet, id)
		return id, nil
	}
	id := m.next
	m.next++
	return id, nil
}

// DeallocatePage drops the stored image of id and puts id on the free list.
func (m *MemStore) DeallocatePage(id PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if !id.Valid() || id >= m.next {
		slog.Debug("storage: deallocate unknown page", "page", id)
		return nil
	}
	if _, ok := m.freeSet[id]; ok {
		return nil
	}
	delete(m.pages, id)
	m.free = append(m.free, id)
	m.freeSet[id] = struct{}{}
	return nil
}

func (m *MemStore) NumPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.next)
}

// Sync is a no-op: nothing in a MemStore is durable.
func (m *MemStore) Sync() error { return nil }

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pages = nil
	return nil
}
