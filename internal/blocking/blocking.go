// Package blocking implements the BLPOP/BRPOP suspension coordinator.
// The immediate, non-empty-list case is handled inline by
// internal/command's list handlers; this package owns only the suspension
// path: registering a waiter and parking the connection's own goroutine
// (never the engine's single mutator goroutine) until a push delivers an
// element or the deadline elapses.
//
// Grounded on the original server's connection-per-goroutine model (server.go):
// the suspended client holds no locks and no partial command state beyond
// what it parked with, implemented as a goroutine blocked on a channel
// receive rather than a manually-managed continuation.
package blocking

import (
	"time"

	"gofastdb/internal/database"
	"gofastdb/internal/protocol"
)

// Await registers clientID as a waiter under every key in keys, then
// blocks until either a push delivers an element to this waiter or
// deadline (absolute Unix seconds, 0 = no timeout) elapses. It returns the
// fully-rendered reply: a 2-element multi-bulk (key, value) on delivery,
// or the null multi-bulk on timeout.
func Await(db *database.DB, clientID uint64, keys []string, deadline int64, now int64) []byte {
	delivered := make(chan database.BlockedPop, 1)

	db.Lock()
	for _, k := range keys {
		db.AddListWaiter(k, &database.ListWaiter{
			ClientID:  clientID,
			Deadline:  deadline,
			Delivered: delivered,
		})
	}
	db.Unlock()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if deadline > 0 {
		d := time.Duration(deadline-now) * time.Second
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	var result []byte
	select {
	case pop := <-delivered:
		result = protocol.MultiBulk([][]byte{[]byte(pop.Key), pop.Value})
	case <-timeoutCh:
		result = protocol.NilMultiBulk()
	}

	db.Lock()
	db.RemoveListWaiterEverywhere(clientID)
	db.Unlock()

	return result
}
