package engine

import (
	"time"

	"github.com/rs/zerolog"

	"gofastdb/internal/aof"
	"gofastdb/internal/command"
	"gofastdb/internal/database"
	"gofastdb/internal/protocol"
	"gofastdb/internal/rdb"
	"gofastdb/internal/replication"
	"gofastdb/internal/swap"
)

// pendingDispatch is a request parked while one or more keys it needs are
// being paged back in from the swap file.
type pendingDispatch struct {
	req       *request
	remaining int
}

// Engine is the single mutator of Server state. Every exported field
// besides the channels is only ever touched from Run's goroutine or
// before Run starts.
type Engine struct {
	Server *database.Server
	Table  *command.Table
	Shared *protocol.Shared

	Log zerolog.Logger

	RequirePass string

	// Persistence, nil when disabled.
	AOF        *aof.AOF
	RDBPath    string
	RDBCompress bool

	// Replication hub; always present, only exercised once a replica syncs.
	Master *replication.Master

	// Swap subsystem, nil when vm-enabled is false.
	SwapPool    *swap.Pool
	SwapAlloc   *swap.PageAllocator
	SwapFile    *swap.File
	SwapEnabled bool
	HashEntryTh int
	HashValueTh int

	requests   chan *request
	register   chan *Client
	unregister chan *Client
	clients    map[uint64]*Client
	nextID     uint64

	pendingByClient map[uint64]*pendingDispatch
	evictJobs       map[string]*swap.Job
	loadJobs        map[string]*swap.Job

	replicaFlushers map[uint64]*replicaFlusher

	// masterClient is a connectionless synthetic client used to dispatch
	// commands streamed in from our own replication master (the
	// "replica applies the stream through the same dispatch path"), routed
	// through the normal requests channel so it never bypasses the
	// single-mutator rule the way a direct Table.Dispatch call would.
	masterClient *Client

	cronInterval time.Duration
	saveInFlight bool
	saveResults  chan saveResult

	stop chan struct{}
}

// New builds an Engine ready to Run. cronInterval matches the
// roughly-100ms time event; tests may pass a shorter interval.
func New(server *database.Server, table *command.Table, cronInterval time.Duration) *Engine {
	master := newClient(0, nil)
	master.authenticated = true
	return &Engine{
		masterClient:    master,
		Server:          server,
		Table:           table,
		Shared:          protocol.NewShared(),
		Master:          replication.NewMaster(),
		requests:        make(chan *request, 256),
		register:        make(chan *Client, 16),
		unregister:      make(chan *Client, 16),
		clients:         make(map[uint64]*Client),
		pendingByClient: make(map[uint64]*pendingDispatch),
		evictJobs:       make(map[string]*swap.Job),
		loadJobs:        make(map[string]*swap.Job),
		replicaFlushers: make(map[uint64]*replicaFlusher),
		cronInterval:    cronInterval,
		saveResults:     make(chan saveResult, 4),
		stop:            make(chan struct{}),
	}
}

// LoadRDB loads the RDB snapshot at path into the server's databases before
// Run starts; a missing file is not an error. AOF replay is the separate
// ReplayAOF (the "AOF takes precedence over RDB when both exist" rule is
// honored by the caller choosing which of these to call).
func (e *Engine) LoadRDB(path string) error {
	return rdb.Load(e.Server, path, e.HashEntryTh, e.HashValueTh)
}

// ReplayAOF replays path against the engine's own dispatch path via a
// synthetic client, matching the "replayed through a fake
// client" requirement.
func (e *Engine) ReplayAOF(path string) error {
	return aof.Replay(path, func(db int, argv [][]byte) error {
		ctx := &command.Context{
			Server: e.Server,
			DB:     e.Server.DBAt(db),
			Now:    nowUnix(),
			Shared: e.Shared,
		}
		if ctx.DB == nil {
			return nil
		}
		e.Table.Dispatch(ctx, argv)
		return nil
	})
}

// Stop requests Run to return after finishing its current iteration.
func (e *Engine) Stop() { close(e.stop) }

// Run is the central event loop: it is the only goroutine that mutates
// Server/DB state (besides the RLock-guarded background save/rewrite
// walkers), processing client requests, swap-job completions, and the
// periodic cron tick from one select statement.
func (e *Engine) Run() {
	ticker := time.NewTicker(e.cronInterval)
	defer ticker.Stop()

	var completions <-chan swap.Completion
	if e.SwapPool != nil {
		completions = e.SwapPool.Completions()
	}

	for {
		select {
		case <-e.stop:
			return
		case c := <-e.register:
			e.clients[c.ID] = c
		case c := <-e.unregister:
			e.dropClient(c)
		case req := <-e.requests:
			e.handleRequest(req)
		case comp := <-completions:
			e.handleSwapCompletion(comp)
		case r := <-e.saveResults:
			e.handleSaveResult(r)
		case <-ticker.C:
			e.cron()
		}
	}
}

func (e *Engine) dropClient(c *Client) {
	delete(e.clients, c.ID)
	delete(e.pendingByClient, c.ID)
	for _, db := range e.Server.DBs {
		db.RemoveListWaiterEverywhere(c.ID)
	}
	e.Master.RemoveReplica(c.ID)
	e.Master.RemoveMonitor(c.ID)
	if f, ok := e.replicaFlushers[c.ID]; ok {
		f.stop()
		delete(e.replicaFlushers, c.ID)
	}
}

func nowUnix() int64 { return time.Now().Unix() }
