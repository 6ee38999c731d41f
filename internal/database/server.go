package database

import "sync"

// SaveParam is one "after S seconds, if at least C dirty operations have
// occurred, snapshot" rule, the `save <S> <C>` config option.
type SaveParam struct {
	Seconds int
	Changes int
}

// Server is the process-wide singleton, reworked from a single global
// into an explicit context struct that is passed through all entry
// points rather than referenced as package-level state.
type Server struct {
	DBs []*DB

	mu           sync.Mutex
	Dirty        uint64 // mutations since last successful snapshot
	LastSaveUnix int64
	SaveParams   []SaveParam

	RequirePass string
	MaxMemory   int64

	HashMaxZipmapEntries int
	HashMaxZipmapValue   int
}

// NewServer allocates n logical databases.
func NewServer(n int) *Server {
	dbs := make([]*DB, n)
	for i := range dbs {
		dbs[i] = NewDB(i)
	}
	return &Server{
		DBs:                  dbs,
		HashMaxZipmapEntries: 64,
		HashMaxZipmapValue:   512,
	}
}

// DBAt returns the logical database at index i, or nil if out of range.
func (s *Server) DBAt(i int) *DB {
	if i < 0 || i >= len(s.DBs) {
		return nil
	}
	return s.DBs[i]
}

// IncrDirty bumps the dirty counter by delta, used after every mutating
// command to drive the save-parameter rules.
func (s *Server) IncrDirty(delta uint64) {
	s.mu.Lock()
	s.Dirty += delta
	s.mu.Unlock()
}

// SnapshotDirty returns (dirty counter, last save Unix time) atomically.
func (s *Server) SnapshotDirty() (uint64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Dirty, s.LastSaveUnix
}

// ResetDirty clears the dirty counter and records a successful save,
// called by the engine once a background snapshot completes.
func (s *Server) ResetDirty(savedAtUnix int64) {
	s.mu.Lock()
	s.Dirty = 0
	s.LastSaveUnix = savedAtUnix
	s.mu.Unlock()
}
