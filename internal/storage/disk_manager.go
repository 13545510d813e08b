package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LocalFileSet represents a local directory + base file name.
// Segments are stored as: Base, Base.1, Base.2, ...
type LocalFileSet struct {
	Dir  string
	Base string
}

func (lfs LocalFileSet) segmentPath(segNo int32) string {
	return filepath.Join(lfs.Dir, SegFileName(lfs.Base, segNo))
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (*os.File, error) {
	if err := os.MkdirAll(lfs.Dir, FileMode0755); err != nil {
		return nil, err
	}
	// RDWR | CREATE (no truncate)
	return os.OpenFile(lfs.segmentPath(segNo), os.O_RDWR|os.O_CREATE, FileMode0644)
}

// DiskManager maps a logical PageID -> (segment, offset) and hands out page ids.
//
// Deallocated ids are remembered in memory and reused FIFO by AllocatePage;
// the free list is not persisted, so a reopened DiskManager only continues
// after the highest page present on disk.
type DiskManager struct {
	fs LocalFileSet

	mu      sync.Mutex
	segs    map[int32]*os.File
	next    PageID
	free    []PageID
	freeSet map[PageID]struct{}
	closed  bool
	reads   uint64
	writes  uint64
}

func NewDiskManager(fs LocalFileSet) (*DiskManager, error) {
	n, err := CountPages(fs)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	slog.Debug("storage: open disk manager", "dir", fs.Dir, "base", fs.Base, "pages", n)
	return &DiskManager{
		fs:      fs,
		segs:    make(map[int32]*os.File),
		next:    PageID(n),
		freeSet: make(map[PageID]struct{}),
	}, nil
}

func locate(id PageID) (segNo int32, offset int64) {
	segNo = int32(id) / MaxPagePerSegment
	pageInSeg := int64(id) % MaxPagePerSegment
	return segNo, pageInSeg * PageSize
}

// segment returns the cached handle for segNo. mu must be held.
func (dm *DiskManager) segment(segNo int32) (*os.File, error) {
	if f, ok := dm.segs[segNo]; ok {
		return f, nil
	}
	f, err := dm.fs.OpenSegment(segNo)
	if err != nil {
		return nil, err
	}
	dm.segs[segNo] = f
	return f, nil
}

// ReadPage reads exactly one page into dst.
// If the segment is shorter than offset+PageSize, the remainder is zero-filled,
// so pages allocated but never written read back as zeroes.
func (dm *DiskManager) ReadPage(id PageID, dst []byte) error {
	if err := checkPage(id, dst); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return ErrClosed
	}

	segNo, off := locate(id)
	f, err := dm.segment(segNo)
	if err != nil {
		return err
	}
	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read page %s: %w", id, err)
	}
	clear(dst[n:])
	dm.reads++
	return nil
}

// WritePage writes exactly one page from src at the location computed from id.
func (dm *DiskManager) WritePage(id PageID, src []byte) error {
	if err := checkPage(id, src); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return ErrClosed
	}

	if err := dm.writeLocked(id, src); err != nil {
		return err
	}
	if id >= dm.next {
		dm.next = id + 1
	}
	return nil
}

// writeLocked writes src at id's slot. mu must be held.
func (dm *DiskManager) writeLocked(id PageID, src []byte) error {
	segNo, off := locate(id)
	f, err := dm.segment(segNo)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("write page %s: %w", id, err)
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	dm.writes++
	return nil
}

func (dm *DiskManager) AllocatePage() (PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return InvalidPageID, ErrClosed
	}

	if len(dm.free) > 0 {
		id := dm.free[0]
		dm.free = dm.free[1:]
		delete(dm.freeSet, id)
		slog.Debug("storage: reuse page", "page", id)
		return id, nil
	}
	id := dm.next
	dm.next++
	slog.Debug("storage: allocate page", "page", id)
	return id, nil
}

// DeallocatePage zeroes the slot of id and puts id on the free list, so a
// reused id reads back as a blank page. Ids that were never handed out, or
// are already free, are ignored.
func (dm *DiskManager) DeallocatePage(id PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return ErrClosed
	}

	if !id.Valid() || id >= dm.next {
		slog.Debug("storage: deallocate unknown page", "page", id)
		return nil
	}
	if _, ok := dm.freeSet[id]; ok {
		return nil
	}
	if err := dm.writeLocked(id, make([]byte, PageSize)); err != nil {
		return fmt.Errorf("zero page %s: %w", id, err)
	}
	dm.free = append(dm.free, id)
	dm.freeSet[id] = struct{}{}
	slog.Debug("storage: deallocate page", "page", id)
	return nil
}

// NumPages is the high-water mark of ids handed out or written.
func (dm *DiskManager) NumPages() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return int(dm.next)
}

// IOCount returns the number of page reads and writes served so far.
func (dm *DiskManager) IOCount() (reads, writes uint64) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.reads, dm.writes
}

// Sync flushes every open segment to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var errs []error
	for _, f := range dm.segs {
		errs = append(errs, f.Sync())
	}
	return errors.Join(errs...)
}

func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return nil
	}
	dm.closed = true

	var errs []error
	for segNo, f := range dm.segs {
		if err := f.Sync(); err != nil {
			errs = append(errs, err)
		}
		closeFile(f)
		delete(dm.segs, segNo)
	}
	return errors.Join(errs...)
}

// CountPages computes total pages for a file set by scanning all segments.
func CountPages(lfs LocalFileSet) (int, error) {
	segs, err := listSegmentsLocal(lfs)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, segNo := range segs {
		info, err := os.Stat(lfs.segmentPath(segNo))
		if err != nil {
			return 0, err
		}
		if info.Size() <= 0 {
			continue
		}
		// Pages are addressed by segment, so the last non-empty segment decides.
		pages := int((info.Size() + PageSize - 1) / PageSize)
		total = int(segNo)*MaxPagePerSegment + pages
	}
	return total, nil
}

func closeFile(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Error("close file", "err", err)
	}
}
