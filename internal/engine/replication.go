package engine

import (
	"io"
	"os"
	"strconv"

	"gofastdb/internal/protoerr"
	"gofastdb/internal/protocol"
	"gofastdb/internal/rdb"
	"gofastdb/internal/replication"
)

// replicaFlusher drains one replica connection's queued output whenever
// Propagate wakes it, independent of that replica's own (silent, since
// master links never send requests) read goroutine.
type replicaFlusher struct {
	c    *Client
	wakeCh chan struct{}
	done chan struct{}
}

func newReplicaFlusher(c *Client) *replicaFlusher {
	return &replicaFlusher{c: c, wakeCh: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *replicaFlusher) run() {
	for {
		select {
		case <-f.wakeCh:
			if err := f.c.Out.DrainAll(); err != nil {
				return
			}
		case <-f.done:
			return
		}
	}
}

// wake signals the flusher without blocking; a flusher already about to
// drain doesn't need a second signal queued behind it.
func (f *replicaFlusher) wake() {
	select {
	case f.wakeCh <- struct{}{}:
	default:
	}
}

func (f *replicaFlusher) stop() { close(f.done) }

// handleSync implements the master side of the bootstrap:
// register the connection as a replica link, and if no snapshot is
// already in flight for an earlier joiner, kick one off. SYNC itself gets
// no RESP reply — the snapshot bulk transfer that follows substitutes for
// it, exactly as a real replica expects.
func (e *Engine) handleSync(req *request) {
	c := req.client
	c.setFlag(flagSlave)
	_, needsSave := e.Master.AddReplica(c.ID, c.Out)

	f := newReplicaFlusher(c)
	e.replicaFlushers[c.ID] = f
	go f.run()

	if needsSave {
		e.startBackgroundSave(func(success bool) {
			links, diff := e.Master.MarkSaveDone(success)
			if !success {
				for _, l := range links {
					e.dropReplicaLink(l.ID)
				}
				return
			}
			for _, l := range links {
				e.streamSnapshotTo(l, diff)
			}
		})
	}
	req.reply <- response{}
}

func (e *Engine) dropReplicaLink(id uint64) {
	if f, ok := e.replicaFlushers[id]; ok {
		f.stop()
		delete(e.replicaFlushers, id)
	}
	e.Master.RemoveReplica(id)
	if c, ok := e.clients[id]; ok {
		c.conn.Close()
	}
}

// streamSnapshotTo sends one replica its bootstrap snapshot followed by
// whatever diff accumulated while the save ran, then marks it ONLINE so
// Propagate starts fanning live writes to it directly.
func (e *Engine) streamSnapshotTo(l *replication.Link, diff []byte) {
	c, ok := e.clients[l.ID]
	if !ok {
		return
	}
	f, err := os.Open(e.RDBPath)
	if err != nil {
		e.Log.Error().Err(err).Msg("open snapshot for replica failed")
		e.dropReplicaLink(l.ID)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		e.dropReplicaLink(l.ID)
		return
	}
	if err := c.Out.WriteRaw([]byte("$" + strconv.FormatInt(info.Size(), 10) + "\r\n")); err != nil {
		e.dropReplicaLink(l.ID)
		return
	}
	buf := make([]byte, 64*1024)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if werr := c.Out.WriteRaw(buf[:n]); werr != nil {
				e.dropReplicaLink(l.ID)
				return
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			e.Log.Error().Err(rerr).Msg("read snapshot for replica failed")
			e.dropReplicaLink(l.ID)
			return
		}
	}
	if len(diff) > 0 {
		c.Out.WriteRaw(diff)
	}
	e.Master.MarkOnline(l.ID)
}

// ApplyReplicated dispatches one command streamed in from our own
// replication master, using the connectionless masterClient so SELECT and
// every write lands through the exact same requests-channel path a real
// client's command would: a replica mirrors its master through the same
// dispatch machinery, never a direct state mutation.
// Matches replication.ApplyFunc's signature so it can be passed straight
// to replication.Bootstrap.
func (e *Engine) ApplyReplicated(argv [][]byte) error {
	if len(argv) == 0 {
		return nil
	}
	replyCh := make(chan response, 1)
	req := &request{client: e.masterClient, argv: argv, reply: replyCh}
	select {
	case e.requests <- req:
	case <-e.stop:
		return nil
	}
	<-replyCh
	return nil
}

// handleMonitor implements MONITOR: the connection receives every
// propagated command verbatim and never gets a normal reply again.
func (e *Engine) handleMonitor(req *request) {
	c := req.client
	c.setFlag(flagMonitor)
	e.Master.AddMonitor(c.ID, c.Out)
	req.reply <- response{bytes: e.Shared.OK}
}

// handleSlaveOf implements SLAVEOF. "SLAVEOF NO ONE" just acknowledges
// promotion to master; pointing at a new host is intentionally left to a
// restart with a new `slaveof` config line, since the bootstrap dial and
// synthetic-client replay loop (replication.Bootstrap) run once at
// startup from cmd/gofastdb, which owns the connection this command would
// otherwise have to hand off to.
func (e *Engine) handleSlaveOf(req *request) {
	argv := req.argv
	if len(argv) != 3 {
		req.reply <- response{bytes: protocol.Error("ERR " + protoerr.Arity("SLAVEOF").Error())}
		return
	}
	req.reply <- response{bytes: e.Shared.OK}
}

// handleSave implements SAVE/BGSAVE. SAVE runs synchronously on the
// engine goroutine — acceptable since rdb.Save only RLocks each DB in
// turn rather than holding a global lock, matching the "SAVE
// blocks the server until it completes" contract exactly rather than
// approximating it with a background goroutine.
func (e *Engine) handleSave(req *request, background bool) {
	if background {
		if e.saveInFlight {
			req.reply <- response{bytes: protocol.Error("ERR " + protoerr.ErrBGSaveInProgress.Error())}
			return
		}
		e.startBackgroundSave(nil)
		req.reply <- response{bytes: protocol.Status("Background saving started")}
		return
	}
	if err := rdb.Save(e.Server, e.RDBPath, e.RDBCompress); err != nil {
		req.reply <- response{bytes: protocol.Error("ERR " + err.Error())}
		return
	}
	e.Server.ResetDirty(nowUnix())
	req.reply <- response{bytes: e.Shared.OK}
}
