package engine

import (
	"gofastdb/internal/swap"
	"gofastdb/internal/value"
)

// handleSwapCompletion advances a value's swap lifecycle on a worker's
// completion, MEMORY -> SWAPPING -> SWAPPED and
// SWAPPED -> LOADING -> MEMORY state machines. Cancelled is checked first
// regardless of job kind, since a job can finish normally and be marked
// cancelled in the same window the cancellation protocol spin-waits
// through (the "prepared for the cancelled-after-completion case" rule).
func (e *Engine) handleSwapCompletion(comp swap.Completion) {
	job := comp.Job
	id := jobKey(job.DB, job.Key)
	db := e.Server.DBAt(job.DB)
	if db == nil {
		return
	}

	// Dict/Storage access is locked for this function's own body only,
	// released before resumeWaiters (KindLoad's tail) re-enters dispatch
	// for any client that was parked on this key.
	db.Lock()
	obj, exists := db.Dict[job.Key]

	switch job.Kind {
	case swap.KindLoad:
		delete(e.loadJobs, id)
		waiters := db.PopIOWaiters(job.Key)
		if job.Cancelled() || comp.Err != nil {
			if comp.Err != nil {
				e.Log.Error().Err(comp.Err).Str("key", job.Key).Msg("swap load failed")
			}
			if exists {
				obj.Storage = value.StorageSwapped
			}
		} else if exists {
			comp.Loaded.Storage = value.StorageMemory
			comp.Loaded.ATime = nowUnix()
			db.Dict[job.Key] = comp.Loaded
		}
		db.Unlock()
		e.resumeWaiters(waiters)

	case swap.KindPrepareSwap:
		delete(e.evictJobs, id)
		if job.Cancelled() || comp.Err != nil || !exists {
			if exists {
				obj.Storage = value.StorageMemory
			}
			db.Unlock()
			return
		}
		start, ok := e.SwapAlloc.Alloc(comp.Pages)
		if !ok {
			obj.Storage = value.StorageMemory
			db.Unlock()
			return
		}
		doJob := &swap.Job{
			Kind:  swap.KindDoSwap,
			Key:   job.Key,
			DB:    job.DB,
			Obj:   obj,
			Page:  start,
			Pages: comp.Pages,
			Type:  obj.Type,
		}
		e.evictJobs[id] = doJob
		db.Unlock()
		e.SwapPool.Submit(doJob)

	case swap.KindDoSwap:
		delete(e.evictJobs, id)
		if job.Cancelled() {
			e.SwapAlloc.Free(job.Page, job.Pages)
			if exists {
				obj.Storage = value.StorageMemory
			}
			db.Unlock()
			return
		}
		if comp.Err != nil {
			e.SwapAlloc.Free(job.Page, job.Pages)
			e.Log.Error().Err(comp.Err).Str("key", job.Key).Msg("swap write failed")
			if exists {
				obj.Storage = value.StorageMemory
			}
			db.Unlock()
			return
		}
		if exists {
			obj.SwapType = obj.Type
			obj.SwapPage = job.Page
			obj.SwapPages = job.Pages
			obj.Storage = value.StorageSwapped
			obj.Raw = nil
			obj.Int = 0
			obj.List = nil
			obj.Set = nil
			obj.ZSet = nil
			obj.Hash = nil
		} else {
			e.SwapAlloc.Free(job.Page, job.Pages)
		}
		db.Unlock()
	}
}

// swapOutCandidates asks each DB for its single best eviction candidate
// and submits a PREPARE_SWAP job for it, eviction path
// (run from cron, never from the dispatch path itself).
func (e *Engine) swapOutCandidates() {
	const tries = 100
	for _, db := range e.Server.DBs {
		db.Lock()
		key, obj, ok := swap.SelectCandidate(db, nowUnix(), tries)
		if ok {
			obj.Storage = value.StorageSwapping
		}
		db.Unlock()
		if !ok {
			continue
		}
		job := &swap.Job{
			Kind:    swap.KindPrepareSwap,
			Key:     key,
			DB:      db.ID,
			Obj:     obj,
			EntryTh: e.HashEntryTh,
			ValueTh: e.HashValueTh,
		}
		e.evictJobs[jobKey(db.ID, key)] = job
		e.SwapPool.Submit(job)
	}
}
