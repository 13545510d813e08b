package bufferpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novabuf/internal/storage"
)

var errInjected = errors.New("injected I/O failure")

// recordingStore wraps a MemStore, counts calls and can be told to fail.
type recordingStore struct {
	*storage.MemStore

	mu          sync.Mutex
	writes      map[storage.PageID]int
	reads       map[storage.PageID]int
	deallocated []storage.PageID

	failRead, failWrite, failAlloc, failDealloc bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemStore: storage.NewMemStore(),
		writes:   make(map[storage.PageID]int),
		reads:    make(map[storage.PageID]int),
	}
}

func (s *recordingStore) ReadPage(id storage.PageID, dst []byte) error {
	s.mu.Lock()
	fail := s.failRead
	s.reads[id]++
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.MemStore.ReadPage(id, dst)
}

func (s *recordingStore) WritePage(id storage.PageID, src []byte) error {
	s.mu.Lock()
	fail := s.failWrite
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	s.mu.Lock()
	s.writes[id]++
	s.mu.Unlock()
	return s.MemStore.WritePage(id, src)
}

func (s *recordingStore) AllocatePage() (storage.PageID, error) {
	if s.failAlloc {
		return storage.InvalidPageID, errInjected
	}
	return s.MemStore.AllocatePage()
}

func (s *recordingStore) DeallocatePage(id storage.PageID) error {
	if s.failDealloc {
		return errInjected
	}
	s.mu.Lock()
	s.deallocated = append(s.deallocated, id)
	s.mu.Unlock()
	return s.MemStore.DeallocatePage(id)
}

// seed writes pages [0, n) filled with their own id.
func (s *recordingStore) seed(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		id, err := s.MemStore.AllocatePage()
		require.NoError(t, err)
		require.NoError(t, s.MemStore.WritePage(id, filled(byte(i))))
	}
}

func (s *recordingStore) image(t *testing.T, id storage.PageID) []byte {
	t.Helper()
	buf := make([]byte, storage.PageSize)
	require.NoError(t, s.MemStore.ReadPage(id, buf))
	return buf
}

func filled(b byte) []byte {
	buf := make([]byte, storage.PageSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func newMemPool(t *testing.T, capacity int) (*BufferPoolManager, *recordingStore) {
	t.Helper()
	store := newRecordingStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewBufferPoolManager(capacity, store, nil), store
}

// tracked reports whether the replacer currently holds idx.
func tracked(t *testing.T, p *BufferPoolManager, idx FrameID) bool {
	t.Helper()
	switch r := p.replacer.(type) {
	case *LRUReplacer[FrameID]:
		_, ok := r.index[idx]
		return ok
	case *ClockReplacer:
		return r.tracked[idx]
	default:
		t.Fatalf("unexpected replacer %T", r)
		return false
	}
}

// requireConsistent checks the frame state machine against the page table,
// free list and replacer.
func requireConsistent(t *testing.T, p *BufferPoolManager) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	free := map[FrameID]bool{}
	for _, idx := range p.freeList {
		require.False(t, free[idx], "frame %d twice on free list", idx)
		free[idx] = true
	}

	resident := 0
	evictable := 0
	for i := range p.frames {
		f := &p.frames[i]
		require.GreaterOrEqual(t, f.pins, int32(0))
		inRepl := tracked(t, p, f.id)

		switch {
		case !f.resident():
			require.True(t, free[f.id], "frame %d neither resident nor free", f.id)
			require.Zero(t, f.pins)
			require.False(t, f.dirty)
			require.False(t, inRepl)
		case f.pins > 0:
			resident++
			require.False(t, free[f.id])
			require.False(t, inRepl, "pinned frame %d is evictable", f.id)
		default:
			resident++
			evictable++
			require.False(t, free[f.id])
			require.True(t, inRepl, "unpinned frame %d not evictable", f.id)
		}

		if f.resident() {
			idx, ok := p.pageTable.Find(f.pageID)
			require.True(t, ok)
			require.Equal(t, f.id, idx)
		}
	}
	require.Equal(t, resident, p.pageTable.Len())
	require.Equal(t, evictable, p.replacer.Size())
	require.Equal(t, len(p.frames), resident+len(p.freeList))
}
