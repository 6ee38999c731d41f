package command

import (
	"gofastdb/internal/database"
	"gofastdb/internal/protocol"
)

// Context is the per-call environment a handler runs in: the server and
// currently selected database, a timestamp for TTL math, and enough
// client-identity to register blocking waiters. It replaces the original
// server's implicit access to a package-level client/server pair: no
// package-level server, everything threaded through explicitly.
type Context struct {
	Server *database.Server
	DB     *database.DB

	Now int64 // cached Unix seconds for this dispatch

	Shared *protocol.Shared

	ClientID      uint64
	Authenticated bool
	InMulti       bool

	// MemoryUsed is the figure DENYOOM checks compare against
	// Server.MaxMemory. The engine does not set it, so on the engine's
	// dispatch path it stays zero and DENYOOM rejects nothing.
	MemoryUsed int64
}
