// Package command implements the command table and per-data-type handlers:
// arity and flag metadata, the dispatch
// sequence up to (but not including) networking and the swap/blocking
// suspension points, which internal/engine owns since only it may suspend
// a client without blocking the single mutator goroutine.
//
// Grounded on the original server's handlers.go (command-name -> func(*Client)
// table) generalized from the original server's fixed handful of cache verbs to
// the full arity/flag/key-position metadata the protocol requires.
package command

import (
	"gofastdb/internal/protocol"
)

// Flag bits, matching the {INLINE|BULK|DENYOOM} plus a Write
// bit this implementation adds to know which commands dirty the dataset
// and must be mirrored to AOF/replicas.
type Flag uint8

const (
	FlagBulk Flag = 1 << iota
	FlagDenyOOM
	FlagWrite
	FlagAdmin // SAVE/BGSAVE/SHUTDOWN/SLAVEOF/CONFIG: not queued by MULTI in some real servers, but here only gated by auth
)

// KeySpec locates the key arguments within argv for the swap preload hook
// and for future key-aware routing. Step 0 means "no keys".
type KeySpec struct {
	First int
	Last  int // negative counts from the end of argv, Redis-style (-1 = last arg)
	Step  int
}

// Pending is returned by a handler that cannot complete synchronously
// (BLPOP/BRPOP on empty lists). The engine registers the
// waiter and resumes the client later; it never blocks the dispatch
// goroutine itself.
type Pending struct {
	Keys     []string
	Deadline int64 // absolute Unix seconds, 0 = no timeout
	PopLeft  bool  // true for BLPOP, false for BRPOP
}

// Result is a handler's outcome.
type Result struct {
	Reply       []byte
	Dirty       int // mutation count, for the dirty counter and AOF/replica mirroring
	Pending     *Pending
	Close       bool
	SwitchDB    int
	SwitchDBSet bool

	// StartMulti/EndMulti signal MULTI/EXEC/DISCARD's effect on the client's
	// MULTI flag and queue; the engine owns the queue itself since that is
	// client-state sequencing, not a DB mutation this package can express
	// on its own.
	StartMulti bool
	EndMulti   bool
}

func reply(b []byte) Result { return Result{Reply: b} }

// HandlerFunc executes one command against ctx.
type HandlerFunc func(ctx *Context, argv [][]byte) Result

// Spec is one command table row.
type Spec struct {
	Name    string
	Arity   int // positive: exact; negative: at least abs(Arity)
	Flags   Flag
	Keys    KeySpec
	Handler HandlerFunc
}

func (s *Spec) IsBulk() bool   { return s.Flags&FlagBulk != 0 }
func (s *Spec) IsWrite() bool  { return s.Flags&FlagWrite != 0 }
func (s *Spec) DenyOOM() bool  { return s.Flags&FlagDenyOOM != 0 }

// arityOK reports whether argc (including the command name) satisfies arity.
func arityOK(arity, argc int) bool {
	if arity >= 0 {
		return argc == arity
	}
	return argc >= -arity
}

// Table is the command registry, built once at startup.
type Table struct {
	specs map[string]*Spec
}

// NewTable builds the full command table.
func NewTable() *Table {
	t := &Table{specs: make(map[string]*Spec)}
	registerConnection(t)
	registerStrings(t)
	registerLists(t)
	registerSets(t)
	registerZSets(t)
	registerHashes(t)
	registerGeneric(t)
	registerSort(t)
	registerTransactions(t)
	return t
}

func (t *Table) register(s *Spec) { t.specs[s.Name] = s }

// Lookup resolves a command by (case-sensitive, upper-cased by caller) name.
func (t *Table) Lookup(name string) (*Spec, bool) {
	s, ok := t.specs[name]
	return s, ok
}

// IsBulk implements protocol.BulkFlagFunc for the inline-final-argument
// escape hatch
func (t *Table) IsBulk(name string) bool {
	s, ok := t.specs[name]
	return ok && s.IsBulk()
}

// Dispatch runs steps 3-6 and 10 of the sequence (unknown/arity
// checks, DENYOOM, handler invocation, dirty accounting). Steps 7 (auth
// gate), 8 (MULTI queueing) and 9 (swap preload) are sequencing concerns
// that span client state the engine owns, so internal/engine performs them
// around this call. QUIT (step 2) is an ordinary table entry, cmdQuit. No
// OOM reclaim (step 1) runs, here or in the engine.
func (t *Table) Dispatch(ctx *Context, argv [][]byte) Result {
	if len(argv) == 0 {
		return Result{}
	}
	name := string(argv[0])
	spec, ok := t.Lookup(name)
	if !ok {
		return reply(protocol.Error(protoErrUnknown(name)))
	}
	if !arityOK(spec.Arity, len(argv)) {
		return reply(protocol.Error(protoErrArity(name)))
	}
	if spec.DenyOOM() && ctx.Server.MaxMemory > 0 && ctx.MemoryUsed > ctx.Server.MaxMemory {
		return reply(protocol.Error("ERR command not allowed when used memory > 'maxmemory'"))
	}
	res := spec.Handler(ctx, argv)
	if res.Pending == nil && spec.IsWrite() && res.Dirty > 0 {
		ctx.Server.IncrDirty(uint64(res.Dirty))
	}
	return res
}

func protoErrUnknown(name string) string { return "ERR unknown command '" + name + "'" }
func protoErrArity(name string) string {
	return "ERR wrong number of arguments for '" + name + "'"
}

// Spec returns the resolved command's KeySpec and write flag, used by the
// engine to decide replication/AOF mirroring and swap preload without
// re-running the handler.
func (t *Table) Spec(name string) (*Spec, bool) { return t.Lookup(name) }
