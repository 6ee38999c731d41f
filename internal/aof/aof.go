// Package aof implements the append-only log: every
// mutation mirrored as a valid multi-bulk command, SELECT emitted on DB
// switch, EXPIRE rewritten to EXPIREAT, and configurable fsync policies.
//
// Mutation mirroring and fsync-policy plumbing generalized from a fixed
// command set to the full write-command surface of internal/command,
// using the same buffered-writer style as the rest of this module.
package aof

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FsyncPolicy selects when Append forces data to disk (the `appendfsync` option).
type FsyncPolicy int

const (
	FsyncNever FsyncPolicy = iota
	FsyncAlways
	FsyncEverySec
)

// AOF is an open append-only log.
type AOF struct {
	mu         sync.Mutex
	f          *os.File
	w          *bufio.Writer
	policy     FsyncPolicy
	lastDB     int
	lastFsync  int64
	everFsynced bool
}

// Open opens (creating if absent) the AOF file at path for appending.
func Open(path string, policy FsyncPolicy) (*AOF, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &AOF{f: f, w: bufio.NewWriter(f), policy: policy, lastDB: -1}, nil
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

// Append mirrors one mutation: argv as received by the handler, except
// EXPIRE's relative seconds are rewritten to EXPIREAT's absolute form so
// replay preserves deadlines across long pauses.
func (a *AOF) Append(db int, argv [][]byte, now int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	argv = rewriteExpire(argv, now)

	if db != a.lastDB {
		sel := [][]byte{[]byte("SELECT"), []byte(strconv.Itoa(db))}
		if _, err := a.w.Write(encodeMultiBulk(sel)); err != nil {
			return err
		}
		a.lastDB = db
	}
	if _, err := a.w.Write(encodeMultiBulk(argv)); err != nil {
		return err
	}

	switch a.policy {
	case FsyncAlways:
		return a.flushSync()
	default:
		return a.w.Flush()
	}
}

// rewriteExpire turns "EXPIRE key seconds" into "EXPIREAT key absTime".
func rewriteExpire(argv [][]byte, now int64) [][]byte {
	if len(argv) != 3 || !strings.EqualFold(string(argv[0]), "EXPIRE") {
		return argv
	}
	secs, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return argv
	}
	return [][]byte{[]byte("EXPIREAT"), argv[1], []byte(strconv.FormatInt(now+secs, 10))}
}

func (a *AOF) flushSync() error {
	if err := a.w.Flush(); err != nil {
		return err
	}
	return a.f.Sync()
}

// Tick implements the "everysec" fsync policy: called once per cron
// iteration, it fsyncs at most once per elapsed second.
func (a *AOF) Tick(now int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.policy != FsyncEverySec {
		return nil
	}
	if a.everFsynced && now <= a.lastFsync {
		return nil
	}
	a.lastFsync = now
	a.everFsynced = true
	return a.flushSync()
}

// Close flushes and closes the underlying file.
func (a *AOF) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.w.Flush(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}
