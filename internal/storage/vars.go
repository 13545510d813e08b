package storage

import (
	"errors"
	"fmt"
)

const (
	OneKB = 1 << 10 // 1,024
	OneGB = 1 << 30 // 1,073,741,824

	SegmentSize       = 1 * OneGB              // 1 GiB
	PageSize          = 4 * OneKB              // 4 KiB
	MaxPagePerSegment = SegmentSize / PageSize // 262,144 pages/segment
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// PageID is the logical identifier of a persistent page.
type PageID int32

// InvalidPageID marks a frame that holds no page.
const InvalidPageID PageID = -1

func (id PageID) Valid() bool { return id >= 0 }

func (id PageID) String() string {
	if !id.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%d", int32(id))
}

type StorageMode int

const (
	Disk   StorageMode = iota + 1 // segment files under a workdir
	Memory                        // process-local, nothing survives Close
)

func (s StorageMode) String() string {
	switch s {
	case Disk:
		return "disk"
	case Memory:
		return "memory"
	default:
		return "unknown"
	}
}

func GetStorageMode(s string) (StorageMode, error) {
	switch s {
	case "disk":
		return Disk, nil
	case "memory":
		return Memory, nil
	default:
		return 0, fmt.Errorf("invalid storage mode: %s", s)
	}
}

var (
	ErrWrongSize     = errors.New("storage: buffer size != PageSize")
	ErrInvalidPageID = errors.New("storage: invalid page id")
	ErrClosed        = errors.New("storage: store is closed")
)
