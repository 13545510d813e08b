package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStore_Contract(t *testing.T) {
	m := NewMemStore()
	defer m.Close()

	id, err := m.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, PageID(0), id)

	dst := pageOf(9)
	require.NoError(t, m.ReadPage(id, dst))
	require.Equal(t, pageOf(0), dst)

	src := pageOf(5)
	require.NoError(t, m.WritePage(id, src))
	// The store keeps its own copy.
	src[0] = 1
	require.NoError(t, m.ReadPage(id, dst))
	require.Equal(t, pageOf(5), dst)

	require.NoError(t, m.DeallocatePage(id))
	require.NoError(t, m.ReadPage(id, dst))
	require.Equal(t, pageOf(0), dst)

	again, err := m.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.NoError(t, m.Sync())
}

func TestOpen_Modes(t *testing.T) {
	s, err := Open(Memory, "", "")
	require.NoError(t, err)
	require.IsType(t, &MemStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Disk, t.TempDir(), "pages")
	require.NoError(t, err)
	require.IsType(t, &DiskManager{}, s)
	require.NoError(t, s.Close())

	_, err = Open(StorageMode(0), "", "")
	require.Error(t, err)

	mode, err := GetStorageMode("memory")
	require.NoError(t, err)
	require.Equal(t, Memory, mode)
	_, err = GetStorageMode("tape")
	require.Error(t, err)
}
