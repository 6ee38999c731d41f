// Package swap implements the page-based value-swap subsystem: a
// bitmap-allocated backing file, a worker pool performing
// LOAD/PREPARE_SWAP/DO_SWAP jobs, and a completion channel the engine
// drains on its own goroutine, never the workers'.
//
// The pipe-wakeup of the original design becomes a Go channel receive;
// golang.org/x/sys/unix provides the exclusive advisory lock OpenFile takes
// on the swap file, so a second process cannot open the same file,
// the way the original server's (indirect) golang.org/x/sys dependency is put to
// use here instead of staying unwired.
package swap

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// PageAllocator tracks free/used pages as a bitmap guarded by a mutex.
type PageAllocator struct {
	mu       sync.Mutex
	used     []bool
	pageSize int
}

// NewPageAllocator creates an allocator for the given page count and size.
func NewPageAllocator(pages, pageSize int) *PageAllocator {
	return &PageAllocator{used: make([]bool, pages), pageSize: pageSize}
}

// PageSize reports the configured page size in bytes.
func (a *PageAllocator) PageSize() int { return a.pageSize }

// Alloc finds the first contiguous run of n free pages, marks them used,
// and returns its starting page index.
func (a *PageAllocator) Alloc(n int) (start int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	run := 0
	for i, u := range a.used {
		if u {
			run = 0
			continue
		}
		run++
		if run == n {
			start = i - n + 1
			for j := start; j <= i; j++ {
				a.used[j] = true
			}
			return start, true
		}
	}
	return 0, false
}

// Free returns n pages starting at start to the pool (used on cancellation
// of a DO_SWAP job, or when a value is reloaded and its pages retired).
func (a *PageAllocator) Free(start, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := start; i < start+n && i < len(a.used); i++ {
		a.used[i] = false
	}
}

// File is the pre-allocated backing file for swapped-out values.
type File struct {
	f        *os.File
	pageSize int
}

// OpenFile pre-allocates a pages*pageSize backing file at path.
func OpenFile(path string, pages, pageSize int) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(pages) * int64(pageSize)); err != nil {
		f.Close()
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, pageSize: pageSize}, nil
}

// WriteAt writes b starting at page startPage.
func (sf *File) WriteAt(b []byte, startPage int) error {
	_, err := sf.f.WriteAt(b, int64(startPage)*int64(sf.pageSize))
	return err
}

// ReadAt reads len(b) bytes starting at page startPage.
func (sf *File) ReadAt(b []byte, startPage int) error {
	_, err := sf.f.ReadAt(b, int64(startPage)*int64(sf.pageSize))
	return err
}

// Close unlinks the swap file: it exists only for the process lifetime
// and is removed on clean shutdown.
func (sf *File) Close(path string) error {
	unix.Flock(int(sf.f.Fd()), unix.LOCK_UN)
	if err := sf.f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
