// Package replication implements the master/replica protocol: master-side
// per-replica bootstrap state machine and command fan-out, and the
// replica-side synchronous bootstrap (replica.go).
//
// Grounded on the normative state table; the original server carries
// no replication layer, so this follows this module's wire sequence directly,
// using github.com/google/uuid for the per-snapshot run id the way
// cuemby-warren uses uuid for node/run identity.
package replication

import (
	"strconv"
	"sync"

	"github.com/google/uuid"

	"gofastdb/internal/protocol"
)

// State is a replica link's bootstrap phase.
type State int

const (
	WaitBgsaveStart State = iota
	WaitBgsaveEnd
	SendBulk
	Online
)

// Link is one connected replica as seen from the master.
type Link struct {
	ID     uint64
	State  State
	LastDB int
	Out    *protocol.Writer
}

// Master tracks every connected replica and monitor, and fans out mutated
// commands to the ones ready to receive them.
type Master struct {
	mu             sync.Mutex
	links          map[uint64]*Link
	monitors       map[uint64]*protocol.Writer
	saveInProgress bool
	diff           []byte // buffered mutations for WAIT_BGSAVE_END joiners
	runID          string
}

// NewMaster creates an empty replication hub with a fresh run id, mirroring
// Redis's replid: replicas bootstrapping against different runs can tell
// they no longer share history.
func NewMaster() *Master {
	return &Master{
		links:    make(map[uint64]*Link),
		monitors: make(map[uint64]*protocol.Writer),
		runID:    uuid.NewString(),
	}
}

// RunID returns the identifier generated for this master's current
// snapshot lineage.
func (m *Master) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// AddReplica registers a newly SYNC'd connection. needsSave reports
// whether the caller must kick off a fresh background save: false when a
// save is already running and this replica was folded into its
// WAIT_BGSAVE_END cohort, sharing the same pending diff per a
// "copy the first's reply list" rule.
func (m *Master) AddReplica(id uint64, out *protocol.Writer) (link *Link, needsSave bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := &Link{ID: id, Out: out, LastDB: -1}
	if m.saveInProgress {
		l.State = WaitBgsaveEnd
		out.Queue(append([]byte(nil), m.diff...))
	} else {
		l.State = WaitBgsaveStart
		needsSave = true
		m.saveInProgress = true
		m.diff = m.diff[:0]
	}
	m.links[id] = l
	return l, needsSave
}

// RemoveReplica drops a disconnected or demoted replica link.
func (m *Master) RemoveReplica(id uint64) {
	m.mu.Lock()
	delete(m.links, id)
	m.mu.Unlock()
}

// AddMonitor registers a MONITOR client; it receives every propagated
// command verbatim regardless of link state.
func (m *Master) AddMonitor(id uint64, out *protocol.Writer) {
	m.mu.Lock()
	m.monitors[id] = out
	m.mu.Unlock()
}

func (m *Master) RemoveMonitor(id uint64) {
	m.mu.Lock()
	delete(m.monitors, id)
	m.mu.Unlock()
}

// MarkSaveDone transitions every WAIT_BGSAVE_START link (the one whose SYNC
// requested the save that just finished) and every WAIT_BGSAVE_END link to
// SEND_BULK on success, returning the links that need the snapshot file
// streamed to them and the mutation diff buffered while the save ran, which the
// caller must send immediately after each link's snapshot bytes so that
// writes mirrored during the save aren't lost (the snapshot-then-diff
// handoff). On failure, every such link is returned too, left in
// WAIT_BGSAVE_END, so the caller can close them: there is no
// partial-success path that lets a link stay bootstrapped without a
// snapshot.
func (m *Master) MarkSaveDone(success bool) (links []*Link, diff []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveInProgress = false
	for _, l := range m.links {
		if l.State == WaitBgsaveStart || l.State == WaitBgsaveEnd {
			l.State = WaitBgsaveEnd
			if success {
				l.State = SendBulk
			}
			links = append(links, l)
		}
	}
	diff = append([]byte(nil), m.diff...)
	if success {
		m.diff = m.diff[:0]
	}
	return links, diff
}

// MarkOnline transitions a SEND_BULK link to ONLINE once its snapshot
// bytes have been queued.
func (m *Master) MarkOnline(id uint64) {
	m.mu.Lock()
	if l, ok := m.links[id]; ok {
		l.State = Online
	}
	m.mu.Unlock()
}

// Propagate fans out one mutated command: WAIT_BGSAVE_START links are
// skipped entirely — they will receive everything once the
// snapshot-then-diff handoff occurs; WAIT_BGSAVE_END links accumulate it
// into the shared diff buffer; SEND_BULK/ONLINE links receive it
// immediately, with a SELECT prefix when their last-sent DB differs; every
// monitor receives it immediately with no SELECT prefix.
func (m *Master) Propagate(db int, argv [][]byte) {
	encoded := encodeMultiBulk(argv)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveInProgress {
		sel := selectPrefix(db)
		m.diff = append(m.diff, sel...)
		m.diff = append(m.diff, encoded...)
	}

	for _, l := range m.links {
		switch l.State {
		case SendBulk, Online:
			if l.LastDB != db {
				l.Out.Queue(selectPrefix(db))
				l.LastDB = db
			}
			l.Out.Queue(encoded)
		}
	}
	for _, mon := range m.monitors {
		mon.Queue(encoded)
	}
}

func selectPrefix(db int) []byte {
	return encodeMultiBulk([][]byte{[]byte("SELECT"), []byte(strconv.Itoa(db))})
}

func encodeMultiBulk(argv [][]byte) []byte {
	out := []byte("*" + strconv.Itoa(len(argv)) + "\r\n")
	for _, a := range argv {
		out = append(out, []byte("$"+strconv.Itoa(len(a))+"\r\n")...)
		out = append(out, a...)
		out = append(out, '\r', '\n')
	}
	return out
}
