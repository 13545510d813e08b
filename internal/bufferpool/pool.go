package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/novabuf/internal/pagetable"
	"github.com/tuannm99/novabuf/internal/storage"
)

var (
	DefaultCapacity = 128

	ErrPoolExhausted   = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPageNotResident = errors.New("bufferpool: page is not resident")
	ErrAlreadyUnpinned = errors.New("bufferpool: page is already unpinned")
	ErrPagePinned      = errors.New("bufferpool: page is pinned")
	ErrInvalidPageID   = errors.New("bufferpool: invalid page id")
	ErrStorageIO       = errors.New("bufferpool: storage I/O error")
)

var _ Manager = (*BufferPoolManager)(nil)

// BufferPoolManager caches pages of a storage.Store in a fixed set of frames.
//
// One mutex guards the page table, free list, replacer and all frame
// metadata, and every public method holds it for its whole duration,
// including the synchronous store calls. Disk latency is therefore on the
// critical path of every operation.
type BufferPoolManager struct {
	disk       storage.Store
	logManager LogManager

	mu        sync.Mutex
	frames    []Frame
	pageTable *pagetable.Table[storage.PageID, FrameID]
	freeList  []FrameID // never-used or deleted frames, popped from the front
	replacer  Replacer[FrameID]
	scratch   []byte // read target on a miss, swapped into the frame on success
	stats     counters
}

// NewBufferPoolManager builds a pool of poolSize frames evicting in LRU order.
// logManager may be nil.
func NewBufferPoolManager(poolSize int, disk storage.Store, logManager LogManager) *BufferPoolManager {
	if poolSize <= 0 {
		poolSize = DefaultCapacity
	}
	return NewBufferPoolManagerWithReplacer(poolSize, disk, logManager, NewLRUReplacer[FrameID](poolSize))
}

// NewBufferPoolManagerWithReplacer is NewBufferPoolManager with a caller
// chosen policy. The replacer must be empty and accept ids in [0, poolSize).
func NewBufferPoolManagerWithReplacer(
	poolSize int,
	disk storage.Store,
	logManager LogManager,
	replacer Replacer[FrameID],
) *BufferPoolManager {
	if poolSize <= 0 {
		poolSize = DefaultCapacity
	}

	arena := make([]byte, (poolSize+1)*storage.PageSize)
	page := func(i int) []byte {
		return arena[i*storage.PageSize : (i+1)*storage.PageSize : (i+1)*storage.PageSize]
	}

	p := &BufferPoolManager{
		disk:       disk,
		logManager: logManager,
		frames:     make([]Frame, poolSize),
		pageTable:  pagetable.New[storage.PageID, FrameID](poolSize),
		freeList:   make([]FrameID, 0, poolSize),
		replacer:   replacer,
		scratch:    page(poolSize),
	}
	for i := range p.frames {
		p.frames[i] = Frame{id: FrameID(i), pageID: storage.InvalidPageID, data: page(i)}
		p.freeList = append(p.freeList, FrameID(i))
	}
	return p
}

// PoolSize returns the number of frames.
func (p *BufferPoolManager) PoolSize() int { return len(p.frames) }

// FetchPage returns the frame holding pageID, pinned once more.
// On a miss the page is read from the store into a victim frame.
func (p *BufferPoolManager) FetchPage(pageID storage.PageID) (*Frame, error) {
	if !pageID.Valid() {
		return nil, ErrInvalidPageID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// 1) HIT
	if idx, ok := p.pageTable.Find(pageID); ok {
		f := &p.frames[idx]
		f.pins++
		p.replacer.Erase(idx)
		p.stats.hits++
		return f, nil
	}

	// 2) MISS: free list first, then the replacer.
	f, fromFree, err := p.victim()
	if err != nil {
		return nil, err
	}
	if err := p.writeBack(f); err != nil {
		p.restore(f, fromFree)
		return nil, err
	}
	if err := p.disk.ReadPage(pageID, p.scratch); err != nil {
		p.restore(f, fromFree)
		slog.Warn("bufferpool: read page failed", "page", pageID, "err", err)
		return nil, fmt.Errorf("%w: read page %s: %w", ErrStorageIO, pageID, err)
	}
	f.data, p.scratch = p.scratch, f.data

	p.install(f, pageID, fromFree)
	p.stats.misses++
	return f, nil
}

// UnpinPage drops one pin on pageID. When the count reaches zero the frame
// becomes evictable.
//
// isDirty replaces the frame's dirty flag rather than being OR'ed into it:
// a later UnpinPage(id, false) clears a dirty mark left by an earlier caller.
func (p *BufferPoolManager) UnpinPage(pageID storage.PageID, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(pageID)
	if !ok {
		return ErrPageNotResident
	}
	f := &p.frames[idx]
	if f.pins <= 0 {
		return ErrAlreadyUnpinned
	}

	f.pins--
	if f.pins == 0 {
		p.replacer.Insert(idx)
	}
	f.dirty = isDirty
	return nil
}

// FlushPage writes pageID back to the store if it is dirty.
// It succeeds without I/O when the page is clean.
func (p *BufferPoolManager) FlushPage(pageID storage.PageID) error {
	if !pageID.Valid() {
		return ErrInvalidPageID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(pageID)
	if !ok {
		return ErrPageNotResident
	}
	return p.writeBack(&p.frames[idx])
}

// FlushAll writes back every dirty resident page. It stops at the first failure.
func (p *BufferPoolManager) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.frames {
		f := &p.frames[i]
		if !f.resident() {
			continue
		}
		if err := p.writeBack(f); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage drops pageID from the pool and deallocates it in the store.
// Deallocation is requested even when the page is not resident.
func (p *BufferPoolManager) DeletePage(pageID storage.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, resident := p.pageTable.Find(pageID)
	if resident && p.frames[idx].pins > 0 {
		return ErrPagePinned
	}

	if err := p.disk.DeallocatePage(pageID); err != nil {
		slog.Warn("bufferpool: deallocate page failed", "page", pageID, "err", err)
		return fmt.Errorf("%w: deallocate page %s: %w", ErrStorageIO, pageID, err)
	}
	if !resident {
		return nil
	}

	p.discard(&p.frames[idx])
	slog.Debug("bufferpool: delete page", "page", pageID, "frame", idx)
	return nil
}

// NewPage allocates a page in the store and returns it pinned, zero-filled
// and clean in a victim frame. A stale unpinned copy of the allocated id is
// dropped; a pinned one makes NewPage fail with ErrPagePinned and hand the
// id back to the store.
func (p *BufferPoolManager) NewPage() (storage.PageID, *Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, fromFree, err := p.victim()
	if err != nil {
		return storage.InvalidPageID, nil, err
	}
	if err := p.writeBack(f); err != nil {
		p.restore(f, fromFree)
		return storage.InvalidPageID, nil, err
	}
	pageID, err := p.disk.AllocatePage()
	if err != nil {
		p.restore(f, fromFree)
		slog.Warn("bufferpool: allocate page failed", "err", err)
		return storage.InvalidPageID, nil, fmt.Errorf("%w: allocate page: %w", ErrStorageIO, err)
	}

	// The id may already be cached if a client fetched it while the store
	// considered it free. A page id maps to at most one frame.
	if idx, ok := p.pageTable.Find(pageID); ok && idx != f.id {
		stale := &p.frames[idx]
		if stale.pins > 0 {
			if err := p.disk.DeallocatePage(pageID); err != nil {
				slog.Warn("bufferpool: release allocated page failed", "page", pageID, "err", err)
			}
			p.restore(f, fromFree)
			return storage.InvalidPageID, nil, fmt.Errorf("%w: allocated page %s", ErrPagePinned, pageID)
		}
		p.discard(stale)
	}

	clear(f.data)
	p.install(f, pageID, fromFree)
	return pageID, f, nil
}

// victim picks the frame to reuse: the free list is drained before the
// replacer is asked. mu must be held.
func (p *BufferPoolManager) victim() (f *Frame, fromFree bool, err error) {
	if len(p.freeList) > 0 {
		idx := p.freeList[0]
		p.freeList = p.freeList[1:]
		return &p.frames[idx], true, nil
	}
	idx, ok := p.replacer.Victim()
	if !ok {
		return nil, false, ErrPoolExhausted
	}
	f = &p.frames[idx]
	if f.pins != 0 {
		// A pinned frame must never be tracked by the replacer.
		slog.Error("bufferpool: replacer returned pinned frame", "frame", idx, "pins", f.pins)
		return nil, false, ErrPoolExhausted
	}
	return f, false, nil
}

// discard drops an unpinned resident frame without writing it back and
// returns it to the free list. mu must be held.
func (p *BufferPoolManager) discard(f *Frame) {
	p.replacer.Erase(f.id)
	p.pageTable.Remove(f.pageID)
	f.reset()
	p.freeList = append(p.freeList, f.id)
}

// restore undoes victim after a failed store call. mu must be held.
func (p *BufferPoolManager) restore(f *Frame, fromFree bool) {
	if fromFree {
		p.freeList = append([]FrameID{f.id}, p.freeList...)
		return
	}
	p.replacer.Insert(f.id)
}

// writeBack persists f if it is dirty and clears the flag. mu must be held.
func (p *BufferPoolManager) writeBack(f *Frame) error {
	if !f.dirty {
		return nil
	}
	// TODO: force the log up to the page LSN here once pages carry one.
	if err := p.disk.WritePage(f.pageID, f.data); err != nil {
		slog.Warn("bufferpool: write back failed", "page", f.pageID, "frame", f.id, "err", err)
		return fmt.Errorf("%w: write page %s: %w", ErrStorageIO, f.pageID, err)
	}
	f.dirty = false
	p.stats.writeBacks++
	slog.Debug("bufferpool: write back", "page", f.pageID, "frame", f.id)
	return nil
}

// install maps pageID to f and pins it once. mu must be held.
func (p *BufferPoolManager) install(f *Frame, pageID storage.PageID, fromFree bool) {
	if f.resident() {
		p.pageTable.Remove(f.pageID)
	}
	if !fromFree {
		p.stats.evictions++
		slog.Debug("bufferpool: evict", "frame", f.id, "old_page", f.pageID, "new_page", pageID)
	}
	p.pageTable.Insert(pageID, f.id)
	f.pageID = pageID
	f.pins = 1
	f.dirty = false
}
