package swap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageAllocatorAllocFindsContiguousRun(t *testing.T) {
	a := NewPageAllocator(10, 4096)
	start, ok := a.Alloc(3)
	assert.True(t, ok)
	assert.Equal(t, 0, start)

	start2, ok := a.Alloc(2)
	assert.True(t, ok)
	assert.Equal(t, 3, start2)
}

func TestPageAllocatorAllocFailsWhenNoRunFits(t *testing.T) {
	a := NewPageAllocator(4, 4096)
	_, ok := a.Alloc(5)
	assert.False(t, ok)
}

func TestPageAllocatorFreeReturnsPages(t *testing.T) {
	a := NewPageAllocator(4, 4096)
	start, ok := a.Alloc(4)
	require.True(t, ok)
	a.Free(start, 4)

	start2, ok := a.Alloc(4)
	assert.True(t, ok)
	assert.Equal(t, 0, start2)
}

func TestPageAllocatorPageSize(t *testing.T) {
	a := NewPageAllocator(1, 256)
	assert.Equal(t, 256, a.PageSize())
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swap.bin")

	sf, err := OpenFile(path, 4, 64)
	require.NoError(t, err)
	defer sf.Close(path)

	data := make([]byte, 64)
	copy(data, []byte("page-data"))
	require.NoError(t, sf.WriteAt(data, 1))

	out := make([]byte, 64)
	require.NoError(t, sf.ReadAt(out, 1))
	assert.Equal(t, data, out)
}

func TestFileCloseRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swap.bin")

	sf, err := OpenFile(path, 2, 64)
	require.NoError(t, err)
	require.NoError(t, sf.Close(path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Close unlinks the swap file")

	_, err = OpenFile(path, 2, 64)
	require.NoError(t, err)
}
