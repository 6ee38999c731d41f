package rdb

import (
	"bufio"
	"fmt"
	"os"

	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

const magic = "REDIS0001"

// Type tags for the per-key value byte, one Type.
const (
	typeString = 0
	typeList   = 1
	typeSet    = 2
	typeZSet   = 3
	typeHash   = 4
)

// Save writes a full snapshot of server to path, atomically (write to a
// temp file, then rename).
func Save(server *database.Server, path string, compress bool) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	if err := writeSnapshot(w, server, compress); err != nil {
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

func writeSnapshot(w *bufio.Writer, server *database.Server, compress bool) error {
	if _, err := w.WriteString(magic); err != nil {
		return err
	}
	for _, db := range server.DBs {
		db.RLock()
		keys := db.Keys(nowUnused)
		if len(keys) == 0 {
			db.RUnlock()
			continue
		}
		if err := w.WriteByte(opSelectDB); err != nil {
			db.RUnlock()
			return err
		}
		if err := writeLength(w, db.ID); err != nil {
			db.RUnlock()
			return err
		}
		for _, k := range keys {
			obj, ok := db.Lookup(k, nowUnused)
			if !ok {
				continue
			}
			if err := writeKeyValue(w, db, k, obj, compress); err != nil {
				db.RUnlock()
				return err
			}
		}
		db.RUnlock()
	}
	return w.WriteByte(opEOF)
}

// nowUnused is passed to Lookup/Keys during a save pass: the save walks a
// locked, point-in-time view of the dict, so lazy-expiry's "now" is
// irrelevant here (already-expired keys were removed by prior lazy/cron
// sweeps); 0 never treats anything as freshly expired mid-walk.
const nowUnused = 0

func writeKeyValue(w *bufio.Writer, db *database.DB, key string, obj *value.Object, compress bool) error {
	// EXPIRETIME precedes the type/key/value triple when the key has a TTL.
	if ttl := db.TTL(key, nowUnused); ttl >= 0 {
		if err := w.WriteByte(opExpireTime); err != nil {
			return err
		}
		var buf [4]byte
		expireAt := nowUnused + ttl
		putUint32BE(buf[:], uint32(expireAt))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}

	var typeByte byte
	switch obj.Type {
	case value.TypeString:
		typeByte = typeString
	case value.TypeList:
		typeByte = typeList
	case value.TypeSet:
		typeByte = typeSet
	case value.TypeZSet:
		typeByte = typeZSet
	case value.TypeHash:
		typeByte = typeHash
	}
	if err := w.WriteByte(typeByte); err != nil {
		return err
	}
	if err := writeString(w, []byte(key), compress); err != nil {
		return err
	}

	switch obj.Type {
	case value.TypeString:
		return writeString(w, obj.Bytes(), compress)
	case value.TypeList:
		elems := obj.List.All()
		if err := writeLength(w, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeString(w, e, compress); err != nil {
				return err
			}
		}
		return nil
	case value.TypeSet:
		if err := writeLength(w, len(obj.Set)); err != nil {
			return err
		}
		for m := range obj.Set {
			if err := writeString(w, []byte(m), compress); err != nil {
				return err
			}
		}
		return nil
	case value.TypeZSet:
		entries := obj.ZSet.All()
		if err := writeLength(w, len(entries)); err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeString(w, []byte(e.Member), compress); err != nil {
				return err
			}
			if err := writeDouble(w, e.Score); err != nil {
				return err
			}
		}
		return nil
	case value.TypeHash:
		all := obj.Hash.All()
		if err := writeLength(w, len(all)); err != nil {
			return err
		}
		for f, v := range all {
			if err := writeString(w, []byte(f), compress); err != nil {
				return err
			}
			if err := writeString(w, v, compress); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("rdb: unhandled type %v", obj.Type)
}

func putUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Load installs every key of the snapshot at path into server's DBs; keys
// already present and absent from the snapshot are left in place. A
// missing file is not an error (fresh start).
func Load(server *database.Server, path string, hashEntryThreshold, hashValueThreshold int) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, len(magic))
	if _, err := r.Read(header); err != nil {
		return err
	}
	if string(header) != magic {
		return fmt.Errorf("rdb: bad magic %q", header)
	}

	cur := server.DBAt(0)
	var pendingExpire int64 = -1
	for {
		op, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch op {
		case opEOF:
			return nil
		case opSelectDB:
			n, _, _, err := readLength(r)
			if err != nil {
				return err
			}
			cur = server.DBAt(n)
			if cur == nil {
				return fmt.Errorf("rdb: SELECTDB out of range: %d", n)
			}
		case opExpireTime:
			var buf [4]byte
			if _, err := readFull(r, buf[:]); err != nil {
				return err
			}
			pendingExpire = int64(getUint32BE(buf[:]))
		default:
			key, obj, err := readValue(r, op, hashEntryThreshold, hashValueThreshold)
			if err != nil {
				return err
			}
			if pendingExpire >= 0 {
				cur.SetWithExpire(string(key), obj, pendingExpire)
				pendingExpire = -1
			} else {
				cur.Set(string(key), obj)
			}
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func readValue(r *bufio.Reader, typeByte byte, hashEntryThreshold, hashValueThreshold int) ([]byte, *value.Object, error) {
	key, err := readString(r)
	if err != nil {
		return nil, nil, err
	}
	switch typeByte {
	case typeString:
		s, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		return key, value.NewString(s), nil
	case typeList:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, nil, err
		}
		obj := value.NewList()
		for i := 0; i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, nil, err
			}
			obj.List.RightPush(s)
		}
		return key, obj, nil
	case typeSet:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, nil, err
		}
		obj := value.NewSet()
		for i := 0; i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, nil, err
			}
			obj.Set[string(s)] = struct{}{}
		}
		return key, obj, nil
	case typeZSet:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, nil, err
		}
		obj := value.NewZSet()
		for i := 0; i < n; i++ {
			m, err := readString(r)
			if err != nil {
				return nil, nil, err
			}
			score, err := readDouble(r)
			if err != nil {
				return nil, nil, err
			}
			obj.ZSet.Insert(string(m), score)
		}
		return key, obj, nil
	case typeHash:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, nil, err
		}
		obj := value.NewHash(hashEntryThreshold, hashValueThreshold)
		for i := 0; i < n; i++ {
			f, err := readString(r)
			if err != nil {
				return nil, nil, err
			}
			v, err := readString(r)
			if err != nil {
				return nil, nil, err
			}
			obj.Hash.Set(f, v)
		}
		return key, obj, nil
	}
	return nil, nil, fmt.Errorf("rdb: unknown type byte %d", typeByte)
}
