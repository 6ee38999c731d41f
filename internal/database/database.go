// Package database implements the per-DB keyspace, TTL index, and the
// blocking/swap wait registries. It holds no networking or event-loop
// concerns — those live in internal/engine, which is the sole goroutine
// mutating a Server's state, honoring a "single main task drives all
// command execution" constraint.
package database

import (
	"sync"

	"gofastdb/internal/value"
)

// ListWaiter is a client parked on BLPOP/BRPOP, registered under every key
// it is waiting on. Delivered, which the engine sends
// exactly once, carries the element a push handed directly to this waiter
// (never the list it was pushed onto).
type ListWaiter struct {
	ClientID  uint64
	Deadline  int64 // absolute Unix seconds; 0 means "never"
	Delivered chan<- BlockedPop
}

// BlockedPop is what a ListWaiter receives when unblocked by a push. Nothing
// sends one when a deadline elapses (the waiting side times out on its own
// timer), so Timeout is never set.
type BlockedPop struct {
	Key     string
	Value   []byte
	Timeout bool
}

// IOWaiter is a client parked on one or more SWAPPED keys,
// woken once every key it depends on has transitioned back to MEMORY.
type IOWaiter struct {
	ClientID uint64
	Ready    chan<- struct{}
}

// DB is one of the server's N logical keyspaces.
type DB struct {
	mu sync.RWMutex // guards the maps below; the engine is the only writer,
	// but snapshot/AOF-rewrite goroutines take read locks to walk dict.

	Dict    map[string]*value.Object
	Expires map[string]int64 // key -> absolute Unix-seconds expiry

	BlockingKeys map[string][]*ListWaiter
	IOKeys       map[string][]*IOWaiter

	ID int
}

// NewDB creates an empty logical database.
func NewDB(id int) *DB {
	return &DB{
		Dict:         make(map[string]*value.Object),
		Expires:      make(map[string]int64),
		BlockingKeys: make(map[string][]*ListWaiter),
		IOKeys:       make(map[string][]*IOWaiter),
		ID:           id,
	}
}

// Lookup returns the value for key if present and not lazily-expired as of
// now. A lazily-expired key is deleted as a side effect: expiration is
// checked lazily on access rather than eagerly for every key.
func (db *DB) Lookup(key string, now int64) (*value.Object, bool) {
	obj, ok := db.Dict[key]
	if !ok {
		return nil, false
	}
	if exp, has := db.Expires[key]; has && exp <= now {
		db.deleteLocked(key)
		return nil, false
	}
	return obj, true
}

// Set installs obj under key, clearing any prior TTL (callers that want to
// preserve an existing TTL must re-apply it).
func (db *DB) Set(key string, obj *value.Object) {
	db.Dict[key] = obj
	delete(db.Expires, key)
}

// SetWithExpire installs obj under key with an absolute expiry.
func (db *DB) SetWithExpire(key string, obj *value.Object, expireAt int64) {
	db.Dict[key] = obj
	if expireAt > 0 {
		db.Expires[key] = expireAt
	} else {
		delete(db.Expires, key)
	}
}

// Delete removes key and its TTL entry, reporting whether it existed.
func (db *DB) Delete(key string) bool {
	_, existed := db.Dict[key]
	db.deleteLocked(key)
	return existed
}

func (db *DB) deleteLocked(key string) {
	delete(db.Dict, key)
	delete(db.Expires, key)
}

// Exists reports presence without the lazy-expire side effect's caller
// needing to unpack (*value.Object, bool).
func (db *DB) Exists(key string, now int64) bool {
	_, ok := db.Lookup(key, now)
	return ok
}

// ExpireAt sets/clears key's TTL, returning false if key is absent.
func (db *DB) ExpireAt(key string, at int64, now int64) bool {
	if _, ok := db.Lookup(key, now); !ok {
		return false
	}
	if at <= now {
		db.deleteLocked(key)
		return true
	}
	db.Expires[key] = at
	return true
}

// TTL returns the remaining seconds for key: -1 if it has no TTL, -2 if
// absent/expired.
func (db *DB) TTL(key string, now int64) int64 {
	if _, ok := db.Lookup(key, now); !ok {
		return -2
	}
	exp, has := db.Expires[key]
	if !has {
		return -1
	}
	return exp - now
}

// Keys returns every non-expired key, evaluated against now.
func (db *DB) Keys(now int64) []string {
	out := make([]string, 0, len(db.Dict))
	for k := range db.Dict {
		if exp, has := db.Expires[k]; has && exp <= now {
			continue
		}
		out = append(out, k)
	}
	return out
}

// RandomExpireSample returns up to n (key, expireAt) pairs for the active
// expire cycle to check against the current time.
func (db *DB) RandomExpireSample(n int) map[string]int64 {
	out := make(map[string]int64, n)
	for k, exp := range db.Expires {
		if len(out) >= n {
			break
		}
		out[k] = exp
	}
	return out
}

// AddListWaiter registers w under key (FIFO order preserved by append).
func (db *DB) AddListWaiter(key string, w *ListWaiter) {
	db.BlockingKeys[key] = append(db.BlockingKeys[key], w)
}

// PopListWaiter removes and returns the oldest waiter under key, if any.
func (db *DB) PopListWaiter(key string) *ListWaiter {
	waiters := db.BlockingKeys[key]
	if len(waiters) == 0 {
		return nil
	}
	w := waiters[0]
	rest := waiters[1:]
	if len(rest) == 0 {
		delete(db.BlockingKeys, key)
	} else {
		db.BlockingKeys[key] = rest
	}
	return w
}

// RemoveListWaiterEverywhere removes clientID from every key it might be
// waiting on (the "unblocked client is removed from every key"
// invariant), used on timeout and on connection close.
func (db *DB) RemoveListWaiterEverywhere(clientID uint64) {
	for key, waiters := range db.BlockingKeys {
		filtered := waiters[:0:0]
		for _, w := range waiters {
			if w.ClientID != clientID {
				filtered = append(filtered, w)
			}
		}
		if len(filtered) == 0 {
			delete(db.BlockingKeys, key)
		} else {
			db.BlockingKeys[key] = filtered
		}
	}
}

// AddIOWaiter registers w under key.
func (db *DB) AddIOWaiter(key string, w *IOWaiter) {
	db.IOKeys[key] = append(db.IOKeys[key], w)
}

// PopIOWaiters removes and returns every waiter registered under key.
func (db *DB) PopIOWaiters(key string) []*IOWaiter {
	w := db.IOKeys[key]
	delete(db.IOKeys, key)
	return w
}

// Lock/RLock/Unlock/RUnlock expose the DB's mutex to background goroutines
// (snapshot writer, AOF rewriter) that must walk Dict without racing the
// engine goroutine's mutations.
func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }
