package engine

import (
	"gofastdb/internal/rdb"
)

// cron runs the periodic maintenance once per tick: active TTL
// sweep, save-rule evaluation, AOF fsync ticking and swap candidate
// eviction. It does not close idle clients.
func (e *Engine) cron() {
	now := nowUnix()
	e.sweepExpired(now)
	e.maybeSave(now)
	if e.AOF != nil {
		if err := e.AOF.Tick(now); err != nil {
			e.Log.Error().Err(err).Msg("aof fsync failed")
		}
	}
	if e.SwapEnabled {
		e.swapOutCandidates()
	}
}

// sweepExpired implements the active expire cycle: sample a handful of
// keys with a TTL per DB and delete the ones already past it, instead of
// waiting for a lazy lookup to find them.
func (e *Engine) sweepExpired(now int64) {
	const sampleSize = 20
	for _, db := range e.Server.DBs {
		sample := db.RandomExpireSample(sampleSize)
		for key, exp := range sample {
			if exp <= now {
				db.Delete(key)
			}
		}
	}
}

// maybeSave evaluates the save-parameter rules: the first rule whose
// elapsed-seconds and dirty-count thresholds are both met triggers a
// background snapshot.
func (e *Engine) maybeSave(now int64) {
	if e.saveInFlight || e.RDBPath == "" {
		return
	}
	dirty, lastSave := e.Server.SnapshotDirty()
	for _, p := range e.Server.SaveParams {
		if dirty >= uint64(p.Changes) && now-lastSave >= int64(p.Seconds) {
			e.startBackgroundSave(nil)
			return
		}
	}
}

// startBackgroundSave kicks off an RDB snapshot on its own goroutine: the
// original server's fork-based background save, reworked into a goroutine
// that only RLocks each DB while walking it (see rdb.Save). after, when
// non-nil, runs on the engine goroutine once the save completes, letting
// callers like SYNC chain a snapshot-then-stream sequence.
func (e *Engine) startBackgroundSave(after func(success bool)) {
	e.saveInFlight = true
	done := make(chan error, 1)
	rdb.SaveBackground(e.Server, e.RDBPath, e.RDBCompress, done)
	go func() {
		err := <-done
		e.saveResults <- saveResult{err: err, after: after}
	}()
}

// saveResult is delivered back to the engine goroutine once a background
// save finishes, since the goroutine above must not touch Server state
// itself.
type saveResult struct {
	err   error
	after func(success bool)
}

func (e *Engine) handleSaveResult(r saveResult) {
	e.saveInFlight = false
	if r.err != nil {
		e.Log.Error().Err(r.err).Msg("background save failed")
	} else {
		e.Server.ResetDirty(nowUnix())
	}
	if r.after != nil {
		r.after(r.err == nil)
	}
}
