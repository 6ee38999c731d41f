package engine

import (
	"bytes"
	"strconv"
	"time"

	"gofastdb/internal/command"
	"gofastdb/internal/database"
	"gofastdb/internal/protocol"
	"gofastdb/internal/protoerr"
	"gofastdb/internal/swap"
	"gofastdb/internal/value"
)

// handleRequest performs the full dispatch sequence for one
// parsed command, running entirely on the engine goroutine. It normalizes
// the command name (Table.Lookup documents itself as case-sensitive,
// expecting an already-upper-cased caller — this is the one chokepoint
// every client command passes through, so upper-casing happens here once),
// then walks auth, MULTI queueing, EXEC replay, swap preload, and finally
// Table.Dispatch itself, mirroring writes to AOF/replicas afterward.
func (e *Engine) handleRequest(req *request) {
	if len(req.argv) == 0 {
		req.reply <- response{}
		return
	}

	upper := bytes.ToUpper(req.argv[0])
	req.argv[0] = upper
	name := string(upper)
	c := req.client

	if e.RequirePass != "" && !c.authenticated && name != "AUTH" {
		req.reply <- response{bytes: protocol.Error("ERR operation not permitted")}
		return
	}

	if c.inMulti && name != "MULTI" && name != "EXEC" && name != "DISCARD" {
		if _, ok := e.Table.Lookup(name); !ok {
			c.multiError = true
			req.reply <- response{bytes: protocol.Error("ERR " + protoerr.Unknown(name).Error())}
			return
		}
		c.queue = append(c.queue, req.argv)
		req.reply <- response{bytes: protocol.Status("QUEUED")}
		return
	}

	switch name {
	case "EXEC":
		e.execTransaction(req)
		return
	case "SYNC":
		e.handleSync(req)
		return
	case "MONITOR":
		e.handleMonitor(req)
		return
	case "SLAVEOF":
		e.handleSlaveOf(req)
		return
	case "SAVE":
		e.handleSave(req, false)
		return
	case "BGSAVE":
		e.handleSave(req, true)
		return
	case "AUTH":
		e.handleAuth(req)
		return
	}

	if e.SwapEnabled && e.checkPreload(req) {
		return
	}

	res := e.dispatchOne(c, req.argv)
	e.finishDispatch(req, name, req.argv, res)
}

// dispatchOne runs one command against ctx's currently selected DB,
// holding the DB's write lock only for the duration of the handler so
// concurrent snapshot/AOF-rewrite readers (which take RLock) never block
// the engine goroutine for longer than one command.
func (e *Engine) dispatchOne(c *Client, argv [][]byte) command.Result {
	db := e.Server.DBAt(c.DBIndex())
	ctx := &command.Context{
		Server:        e.Server,
		DB:            db,
		Now:           nowUnix(),
		Shared:        e.Shared,
		ClientID:      c.ID,
		Authenticated: c.authenticated,
		InMulti:       c.inMulti,
	}
	db.Lock()
	res := e.Table.Dispatch(ctx, argv)
	db.Unlock()
	return res
}

// finishDispatch applies a Result's client-state side effects, mirrors
// writes to AOF/replicas, and finally replies (or parks the client for
// BLPOP/BRPOP ).
func (e *Engine) finishDispatch(req *request, name string, argv [][]byte, res command.Result) {
	c := req.client
	if res.StartMulti {
		c.inMulti = true
		c.queue = nil
		c.multiError = false
	}
	if res.EndMulti {
		c.inMulti = false
		c.queue = nil
		c.multiError = false
	}
	if res.SwitchDBSet {
		c.setDBIndex(res.SwitchDB)
	}

	if spec, ok := e.Table.Lookup(name); ok && spec.IsWrite() && res.Pending == nil && res.Dirty > 0 {
		e.propagate(c.DBIndex(), argv)
	}

	if res.Pending != nil {
		req.reply <- response{block: &blockInfo{keys: res.Pending.Keys, deadline: res.Pending.Deadline}}
		return
	}
	req.reply <- response{bytes: res.Reply, close: res.Close}
}

// propagate mirrors one already-applied write to the AOF and to every
// replica/monitor.
func (e *Engine) propagate(db int, argv [][]byte) {
	if e.AOF != nil {
		if err := e.AOF.Append(db, argv, nowUnix()); err != nil {
			e.Log.Error().Err(err).Msg("aof append failed")
		}
	}
	e.Master.Propagate(db, argv)
	for _, f := range e.replicaFlushers {
		f.wake()
	}
}

// handleAuth checks the supplied password against RequirePass itself: the
// command table's cmdAuth is shape-only (it has no access to a live
// client's authenticated flag), so the actual comparison and the flip of
// c.authenticated both happen here.
func (e *Engine) handleAuth(req *request) {
	c := req.client
	if len(req.argv) != 2 {
		req.reply <- response{bytes: protocol.Error("ERR " + protoerr.Arity("AUTH").Error())}
		return
	}
	if e.RequirePass == "" {
		req.reply <- response{bytes: protocol.Error("ERR Client sent AUTH, but no password is set")}
		return
	}
	if string(req.argv[1]) != e.RequirePass {
		req.reply <- response{bytes: protocol.Error("ERR invalid password")}
		return
	}
	c.authenticated = true
	req.reply <- response{bytes: e.Shared.OK}
}

// execTransaction replays a client's queued commands by re-entering
// Table.Dispatch once per queued argv, per transactions.go's documented
// contract that only the engine can produce EXEC's combined reply.
func (e *Engine) execTransaction(req *request) {
	c := req.client
	if !c.inMulti {
		req.reply <- response{bytes: protocol.Error("ERR EXEC without MULTI")}
		return
	}
	queued := c.queue
	hadError := c.multiError
	c.inMulti = false
	c.queue = nil
	c.multiError = false

	if hadError {
		req.reply <- response{bytes: protocol.Error("EXECABORT Transaction discarded because of previous errors.")}
		return
	}

	replies := make([][]byte, 0, len(queued))
	for _, argv := range queued {
		name := string(argv[0])
		res := e.dispatchOne(c, argv)
		if res.SwitchDBSet {
			c.setDBIndex(res.SwitchDB)
		}
		if spec, ok := e.Table.Lookup(name); ok && spec.IsWrite() && res.Dirty > 0 {
			e.propagate(c.DBIndex(), argv)
		}
		replies = append(replies, res.Reply)
	}
	req.reply <- response{bytes: protocol.WrapReplies(replies)}
}

// checkPreload implements the "Preload for commands" rule: any
// key a command is about to touch that is currently SWAPPED triggers a
// LOAD job and parks the client; a key mid-eviction (SWAPPING) is
// reclaimed via the cancellation protocol instead of waiting on it. It
// reports true when req was parked and must not be dispatched yet.
func (e *Engine) checkPreload(req *request) bool {
	c := req.client
	name := string(req.argv[0])
	spec, ok := e.Table.Lookup(name)
	if !ok || spec.Keys.Step == 0 {
		return false
	}
	db := e.Server.DBAt(c.DBIndex())
	keys := resolveKeys(spec.Keys, req.argv)

	// Each key is locked only while its own Dict entry/Storage field is
	// touched, never across cancelAndWait's spin-wait, since that re-enters
	// handleSwapCompletion, which takes the same lock for a different key.
	waiting := 0
	for _, k := range keys {
		db.Lock()
		obj, ok := db.Dict[k]
		if !ok {
			db.Unlock()
			continue
		}
		storage := obj.Storage
		switch storage {
		case value.StorageSwapped:
			e.submitLoad(db, k, obj)
			db.AddIOWaiter(k, &database.IOWaiter{ClientID: c.ID})
			waiting++
			db.Unlock()
		case value.StorageLoading:
			db.AddIOWaiter(k, &database.IOWaiter{ClientID: c.ID})
			waiting++
			db.Unlock()
		case value.StorageSwapping:
			job, hasJob := e.evictJobs[jobKey(db.ID, k)]
			db.Unlock()
			if hasJob {
				e.cancelAndWait(job)
			}
		default:
			db.Unlock()
		}
	}
	if waiting == 0 {
		return false
	}
	e.pendingByClient[c.ID] = &pendingDispatch{req: req, remaining: waiting}
	return true
}

// submitLoad transitions obj to LOADING and submits a LOAD job for it,
// unless one is already in flight (a second command referencing the same
// key while its load is still running just adds another IOWaiter).
func (e *Engine) submitLoad(db *database.DB, key string, obj *value.Object) {
	id := jobKey(db.ID, key)
	if _, inFlight := e.loadJobs[id]; inFlight {
		return
	}
	obj.Storage = value.StorageLoading
	job := &swap.Job{
		Kind:    swap.KindLoad,
		Key:     key,
		DB:      db.ID,
		Page:    obj.SwapPage,
		Pages:   obj.SwapPages,
		Type:    obj.SwapType,
		EntryTh: e.HashEntryTh,
		ValueTh: e.HashValueTh,
	}
	e.loadJobs[id] = job
	e.SwapPool.Submit(job)
}

// cancelAndWait implements the cancellation protocol: flip the
// job's cancelled flag, then spin, pulling completions off the swap pool
// itself (since the engine goroutine can't re-enter its own select loop)
// until the job reaches JobDone.
func (e *Engine) cancelAndWait(job *swap.Job) {
	job.Cancel()
	completions := e.SwapPool.Completions()
	for job.State() != swap.JobDone {
		select {
		case comp := <-completions:
			e.handleSwapCompletion(comp)
		default:
			time.Sleep(time.Microsecond)
		}
	}
}

// resumeWaiters wakes every pendingDispatch whose last dependency on key
// just resolved, re-running the held request from the top (its keys are
// all back in MEMORY by now, so checkPreload is a no-op the second time).
func (e *Engine) resumeWaiters(waiters []*database.IOWaiter) {
	for _, w := range waiters {
		pd, ok := e.pendingByClient[w.ClientID]
		if !ok {
			continue
		}
		pd.remaining--
		if pd.remaining <= 0 {
			delete(e.pendingByClient, w.ClientID)
			e.handleRequest(pd.req)
		}
	}
}

func jobKey(db int, key string) string { return strconv.Itoa(db) + "\x00" + key }

// resolveKeys expands a KeySpec against one argv into concrete key
// strings, clamping Last (which may be negative, Redis-style, or past the
// end of a variable-arity command) to argv's actual bounds.
func resolveKeys(ks command.KeySpec, argv [][]byte) []string {
	if ks.First <= 0 || ks.Step <= 0 {
		return nil
	}
	last := ks.Last
	if last < 0 {
		last = len(argv) + last
	}
	if last >= len(argv) {
		last = len(argv) - 1
	}
	var keys []string
	for i := ks.First; i <= last; i += ks.Step {
		if i < 0 || i >= len(argv) {
			break
		}
		keys = append(keys, string(argv[i]))
	}
	return keys
}
