package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiskManager(t *testing.T) (*DiskManager, LocalFileSet) {
	t.Helper()

	fs := LocalFileSet{Dir: t.TempDir(), Base: "pages"}
	dm, err := NewDiskManager(fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return dm, fs
}

func pageOf(b byte) []byte {
	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestDiskManager_WriteThenRead(t *testing.T) {
	dm, _ := newTestDiskManager(t)

	require.NoError(t, dm.WritePage(3, pageOf(7)))

	dst := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(3, dst))
	require.Equal(t, pageOf(7), dst)

	// Page 1 was never written: it lies inside the file and reads as zeroes.
	require.NoError(t, dm.ReadPage(1, dst))
	require.Equal(t, pageOf(0), dst)

	reads, writes := dm.IOCount()
	assert.Equal(t, uint64(2), reads)
	assert.Equal(t, uint64(1), writes)
}

func TestDiskManager_ReadBeyondEOF_ZeroFills(t *testing.T) {
	dm, _ := newTestDiskManager(t)

	dst := pageOf(0xff)
	require.NoError(t, dm.ReadPage(42, dst))
	require.Equal(t, pageOf(0), dst)
}

func TestDiskManager_RejectsBadArguments(t *testing.T) {
	dm, _ := newTestDiskManager(t)

	require.ErrorIs(t, dm.ReadPage(InvalidPageID, make([]byte, PageSize)), ErrInvalidPageID)
	require.ErrorIs(t, dm.WritePage(0, make([]byte, 10)), ErrWrongSize)
}

func TestDiskManager_AllocateReusesDeallocatedFIFO(t *testing.T) {
	dm, _ := newTestDiskManager(t)

	for want := PageID(0); want < 4; want++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}

	require.NoError(t, dm.DeallocatePage(2))
	require.NoError(t, dm.DeallocatePage(0))
	// Double free and unknown ids are ignored.
	require.NoError(t, dm.DeallocatePage(2))
	require.NoError(t, dm.DeallocatePage(99))
	require.NoError(t, dm.DeallocatePage(InvalidPageID))

	ids := make([]PageID, 0, 3)
	for range 3 {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Equal(t, []PageID{2, 0, 4}, ids)
	require.Equal(t, 5, dm.NumPages())
}

func TestDiskManager_ReopenContinuesAfterLastPage(t *testing.T) {
	fs := LocalFileSet{Dir: t.TempDir(), Base: "pages"}

	dm, err := NewDiskManager(fs)
	require.NoError(t, err)
	require.NoError(t, dm.WritePage(0, pageOf(1)))
	require.NoError(t, dm.WritePage(2, pageOf(3)))
	require.NoError(t, dm.Close())

	dm, err = NewDiskManager(fs)
	require.NoError(t, err)
	defer dm.Close()

	require.Equal(t, 3, dm.NumPages())
	id, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, PageID(3), id)

	dst := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(2, dst))
	require.Equal(t, pageOf(3), dst)
}

func TestDiskManager_ClosedRejectsIO(t *testing.T) {
	dm, _ := newTestDiskManager(t)
	require.NoError(t, dm.Close())
	require.NoError(t, dm.Close())

	require.ErrorIs(t, dm.WritePage(0, pageOf(1)), ErrClosed)
	_, err := dm.AllocatePage()
	require.ErrorIs(t, err, ErrClosed)
}

func TestRemoveAllSegments(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "pages"}

	for _, name := range []string{"pages", "pages.1", "pages.2", "pages.x", "other"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), FileMode0644))
	}

	segs, err := listSegmentsLocal(fs)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1, 2}, segs)

	require.NoError(t, RemoveAllSegments(fs))

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(left))
	for _, e := range left {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"pages.x", "other"}, names)
}

func TestSegFileName(t *testing.T) {
	assert.Equal(t, "t", SegFileName("t", 0))
	assert.Equal(t, "t.3", SegFileName("t", 3))
}

func TestDiskManager_DeallocateZeroesPage(t *testing.T) {
	dm, _ := newTestDiskManager(t)

	id, err := dm.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, dm.WritePage(id, pageOf(0xAB)))
	require.NoError(t, dm.Sync())

	require.NoError(t, dm.DeallocatePage(id))
	again, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id, again)

	dst := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(again, dst))
	require.Equal(t, pageOf(0), dst)
}
