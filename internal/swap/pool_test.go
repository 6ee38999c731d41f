package swap

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "swap.bin")
	sf, err := OpenFile(path, 16, 64)
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close(path) })

	alloc := NewPageAllocator(16, 64)
	return NewPool(sf, alloc, 2, 8)
}

func awaitCompletion(t *testing.T, p *Pool) Completion {
	t.Helper()
	select {
	case c := <-p.Completions():
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
		return Completion{}
	}
}

func TestPoolPrepareSwapReportsPages(t *testing.T) {
	p := newTestPool(t)
	obj := value.NewString([]byte("hello world"))
	job := &Job{Kind: KindPrepareSwap, Obj: obj}
	p.Submit(job)

	comp := awaitCompletion(t, p)
	assert.NoError(t, comp.Err)
	assert.GreaterOrEqual(t, comp.Pages, 1)
}

func TestPoolDoSwapThenLoadRoundTrips(t *testing.T) {
	p := newTestPool(t)
	obj := value.NewString([]byte("roundtrip-value"))

	prep := &Job{Kind: KindPrepareSwap, Obj: obj}
	p.Submit(prep)
	prepComp := awaitCompletion(t, p)
	require.NoError(t, prepComp.Err)

	doSwap := &Job{Kind: KindDoSwap, Obj: obj, Page: 0, Pages: prepComp.Pages}
	p.Submit(doSwap)
	swapComp := awaitCompletion(t, p)
	require.NoError(t, swapComp.Err)

	load := &Job{Kind: KindLoad, Type: value.TypeString, Page: 0, Pages: prepComp.Pages}
	p.Submit(load)
	loadComp := awaitCompletion(t, p)
	require.NoError(t, loadComp.Err)
	require.NotNil(t, loadComp.Loaded)
	assert.Equal(t, "roundtrip-value", string(loadComp.Loaded.Bytes()))
}

func TestPoolCancelledJobReportsErrCancelled(t *testing.T) {
	p := newTestPool(t)
	job := &Job{Kind: KindPrepareSwap, Obj: value.NewString([]byte("x"))}
	job.Cancel()
	p.Submit(job)

	comp := awaitCompletion(t, p)
	assert.Error(t, comp.Err)
	assert.Equal(t, JobDone, job.State())
}

func TestPoolUnknownKindReportsError(t *testing.T) {
	p := newTestPool(t)
	job := &Job{Kind: Kind(99)}
	p.Submit(job)

	comp := awaitCompletion(t, p)
	assert.Error(t, comp.Err)
}

func TestPoolCloseDrainsAndClosesCompletions(t *testing.T) {
	p := newTestPool(t)
	p.Close()

	_, ok := <-p.Completions()
	assert.False(t, ok)
}

func TestSelectCandidatePicksOnlyMemoryRefOneEntries(t *testing.T) {
	db := database.NewDB(0)

	memObj := value.NewString([]byte("in-memory"))
	memObj.ATime = 1000
	db.Dict["mem"] = memObj

	swappedObj := value.NewString([]byte("swapped-out"))
	swappedObj.Storage = value.StorageSwapped
	db.Dict["swapped"] = swappedObj

	key, obj, ok := SelectCandidate(db, 2000, 10)
	assert.True(t, ok)
	assert.Equal(t, "mem", key)
	assert.Same(t, memObj, obj)
}

func TestSelectCandidateEmptyDictReturnsNotOK(t *testing.T) {
	db := database.NewDB(0)
	_, _, ok := SelectCandidate(db, 100, 10)
	assert.False(t, ok)
}

func TestSelectCandidatePrefersOlderAccessTime(t *testing.T) {
	db := database.NewDB(0)

	older := value.NewString([]byte("old"))
	older.ATime = 100
	db.Dict["old"] = older

	newer := value.NewString([]byte("new"))
	newer.ATime = 999
	db.Dict["new"] = newer

	key, _, ok := SelectCandidate(db, 1000, 10)
	assert.True(t, ok)
	assert.Equal(t, "old", key)
}
