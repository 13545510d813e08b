package storage

import "fmt"

// Store is the persistent-page contract the buffer pool writes through.
// All calls are synchronous.
type Store interface {
	// ReadPage overwrites dst with the durable image of id.
	ReadPage(id PageID, dst []byte) error
	// WritePage durably persists src as the image of id.
	WritePage(id PageID, src []byte) error
	// AllocatePage returns an id that is not live.
	AllocatePage() (PageID, error)
	// DeallocatePage marks id reclaimable. In-memory copies are untouched.
	DeallocatePage(id PageID) error
	NumPages() int
	// Sync forces written pages to stable storage.
	Sync() error
	Close() error
}

var (
	_ Store = (*DiskManager)(nil)
	_ Store = (*MemStore)(nil)
)

// Open returns the Store for mode. workdir and base are ignored for Memory.
func Open(mode StorageMode, workdir, base string) (Store, error) {
	switch mode {
	case Disk:
		dm, err := NewDiskManager(LocalFileSet{Dir: workdir, Base: base})
		if err != nil {
			return nil, fmt.Errorf("error initialize disk manager %w", err)
		}
		return dm, nil
	case Memory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage mode %s", mode)
	}
}

func checkPage(id PageID, buf []byte) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPageID, id)
	}
	if len(buf) != PageSize {
		return ErrWrongSize
	}
	return nil
}
