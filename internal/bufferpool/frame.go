package bufferpool

import "github.com/tuannm99/novabuf/internal/storage"

// FrameID is the slot index of a frame; it is stable for the pool's lifetime.
type FrameID int

// Frame is one page-sized slot of the pool.
//
// Metadata is owned by the pool and only changes under its lock. While a
// caller holds a pin, PageID is stable and Data is the page image; callers
// sharing a pinned page must synchronize writes to Data themselves.
type Frame struct {
	id     FrameID
	pageID storage.PageID
	data   []byte
	pins   int32
	dirty  bool
}

func (f *Frame) ID() FrameID { return f.id }

func (f *Frame) PageID() storage.PageID { return f.pageID }

func (f *Frame) Data() []byte { return f.data }

// reset returns the frame to the free state.
func (f *Frame) reset() {
	f.pageID = storage.InvalidPageID
	f.pins = 0
	f.dirty = false
	clear(f.data)
}

func (f *Frame) resident() bool { return f.pageID.Valid() }
