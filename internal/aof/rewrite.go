package aof

import (
	"bufio"
	"os"
	"strconv"
	"sync"

	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

// DiffBuffer accumulates every mutation mirrored while a background
// rewrite is in flight: the parent keeps appending here
// concurrently with the rewriter scanning a point-in-time view, then
// splices the buffer onto the rewriter's output on success.
type DiffBuffer struct {
	mu  sync.Mutex
	buf []byte
}

// Append records one already-AOF-encoded command (SELECT+mutation pair).
func (d *DiffBuffer) Append(encoded []byte) {
	d.mu.Lock()
	d.buf = append(d.buf, encoded...)
	d.mu.Unlock()
}

// Bytes returns (and does not clear) the accumulated diff.
func (d *DiffBuffer) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return out
}

// Rewrite emits the minimal command sequence that rebuilds every key
// across every DB (SET for strings, repeated RPUSH/SADD/ZADD/HSET, then
// EXPIREAT if applicable) to a temp file, then renames it over path.
func Rewrite(server *database.Server, path string) error {
	tmp := path + ".rewrite.tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeRebuild(w, server); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// RewriteBackground runs Rewrite on a goroutine; the caller is expected to
// have started collecting into a DiffBuffer before calling this, and to
// splice diff.Bytes() onto path after done succeeds, mirroring a
// "parent appends diff buffer to child's temp file, renames" sequence,
// adapted from fork+temp-file to goroutine+temp-file since Go has no COW
// fork to give the rewriter its own consistent view for free.
func RewriteBackground(server *database.Server, path string, done chan<- error) {
	go func() {
		done <- Rewrite(server, path)
	}()
}

func writeRebuild(w *bufio.Writer, server *database.Server) error {
	lastDB := -1
	for _, db := range server.DBs {
		db.RLock()
		keys := db.Keys(0)
		if len(keys) == 0 {
			db.RUnlock()
			continue
		}
		if db.ID != lastDB {
			if err := writeCmd(w, "SELECT", []byte(strconv.Itoa(db.ID))); err != nil {
				db.RUnlock()
				return err
			}
			lastDB = db.ID
		}
		for _, k := range keys {
			obj, ok := db.Lookup(k, 0)
			if !ok {
				continue
			}
			if err := rebuildKey(w, db, k, obj); err != nil {
				db.RUnlock()
				return err
			}
		}
		db.RUnlock()
	}
	return nil
}

func rebuildKey(w *bufio.Writer, db *database.DB, key string, obj *value.Object) error {
	switch obj.Type {
	case value.TypeString:
		if err := writeCmd(w, "SET", []byte(key), obj.Bytes()); err != nil {
			return err
		}
	case value.TypeList:
		for _, e := range obj.List.All() {
			if err := writeCmd(w, "RPUSH", []byte(key), e); err != nil {
				return err
			}
		}
	case value.TypeSet:
		for m := range obj.Set {
			if err := writeCmd(w, "SADD", []byte(key), []byte(m)); err != nil {
				return err
			}
		}
	case value.TypeZSet:
		for _, e := range obj.ZSet.All() {
			score := strconv.FormatFloat(e.Score, 'g', 17, 64)
			if err := writeCmd(w, "ZADD", []byte(key), []byte(score), []byte(e.Member)); err != nil {
				return err
			}
		}
	case value.TypeHash:
		for f, v := range obj.Hash.All() {
			if err := writeCmd(w, "HSET", []byte(key), []byte(f), v); err != nil {
				return err
			}
		}
	}
	if ttl := db.TTL(key, 0); ttl >= 0 {
		return writeCmd(w, "EXPIREAT", []byte(key), []byte(strconv.FormatInt(ttl, 10)))
	}
	return nil
}

func writeCmd(w *bufio.Writer, name string, args ...[]byte) error {
	argv := append([][]byte{[]byte(name)}, args...)
	_, err := w.Write(encodeMultiBulk(argv))
	return err
}
