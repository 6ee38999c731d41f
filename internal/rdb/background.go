package rdb

import "gofastdb/internal/database"

// SaveBackground runs Save on a separate goroutine and reports completion
// via done, mirroring a "writer forks" background save without an actual
// fork: Go has no cheap copy-on-write primitive, so consistency instead
// comes from Save's own per-DB RLock walk (internal/database.DB.RLock),
// which the engine goroutine briefly blocks on instead of racing a forked
// child's private address space. Grounded on the same goroutine-plus-snapshot
// pattern used by the AOF rewrite in internal/aof.
func SaveBackground(server *database.Server, path string, compress bool, done chan<- error) {
	go func() {
		done <- Save(server, path, compress)
	}()
}
