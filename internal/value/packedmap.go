package value

import "encoding/binary"

// Packed-map byte layout, grounded on redis-1.3.6-master/zipmap.c:
//
//	<status:u8> ( <klen> key <vlen> <pad:u8> value | <EMPTY> <blocklen:u32le> )* <END>
//
// klen/vlen are a single byte for lengths 0-252; otherwise a 0xFD sentinel
// followed by a 4-byte little-endian length. EMPTY=0xFE, END=0xFF. The
// status byte's low bit marks "contains at least one EMPTY block". pad
// holds up to maxValueFree bytes of trailing slack belonging to the value.
const (
	bigLenMarker   = 0xFD
	emptyMarker    = 0xFE
	endMarker      = 0xFF
	maxValueFree   = 5
	statusFragFlag = 1
)

func encodeLen(n int) []byte {
	if n < bigLenMarker {
		return []byte{byte(n)}
	}
	buf := make([]byte, 5)
	buf[0] = bigLenMarker
	binary.LittleEndian.PutUint32(buf[1:], uint32(n))
	return buf
}

func decodeLenAt(buf []byte, pos int) (n int, consumed int) {
	b := buf[pos]
	if b < bigLenMarker {
		return int(b), 1
	}
	return int(binary.LittleEndian.Uint32(buf[pos+1 : pos+5])), 5
}

// packedMap is the compact small-hash encoding used by HASH/PACKED_MAP.
type packedMap struct {
	buf []byte
}

func newPackedMap() *packedMap {
	return &packedMap{buf: []byte{0, endMarker}}
}

type pmEntry struct {
	keyStart, keyLen   int
	valStart, valLen   int
	pad                int
	entryStart, entryEnd int
}

// scan walks entries and empty blocks, invoking fn(entry) for each live
// entry. fn returning false stops iteration early.
func (pm *packedMap) scan(fn func(pmEntry) bool) {
	pos := 1
	buf := pm.buf
	for pos < len(buf) {
		switch buf[pos] {
		case endMarker:
			return
		case emptyMarker:
			blockLen := int(binary.LittleEndian.Uint32(buf[pos+1 : pos+5]))
			pos += blockLen
		default:
			e := pm.readEntry(pos)
			if !fn(e) {
				return
			}
			pos = e.entryEnd
		}
	}
}

func (pm *packedMap) readEntry(pos int) pmEntry {
	buf := pm.buf
	start := pos
	klen, kc := decodeLenAt(buf, pos)
	pos += kc
	keyStart := pos
	pos += klen
	vlen, vc := decodeLenAt(buf, pos)
	pos += vc
	pad := int(buf[pos])
	pos++
	valStart := pos
	pos += vlen
	pos += pad
	return pmEntry{
		keyStart: keyStart, keyLen: klen,
		valStart: valStart, valLen: vlen, pad: pad,
		entryStart: start, entryEnd: pos,
	}
}

func (pm *packedMap) key(e pmEntry) []byte { return pm.buf[e.keyStart : e.keyStart+e.keyLen] }
func (pm *packedMap) val(e pmEntry) []byte { return pm.buf[e.valStart : e.valStart+e.valLen] }

func (pm *packedMap) setFragmented() {
	pm.buf[0] |= statusFragFlag
}

// Get returns the value for key, if present. O(entries).
func (pm *packedMap) Get(key []byte) ([]byte, bool) {
	var found []byte
	var ok bool
	pm.scan(func(e pmEntry) bool {
		if bytesEqual(pm.key(e), key) {
			found = append([]byte(nil), pm.val(e)...)
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

func (pm *packedMap) Exists(key []byte) bool {
	_, ok := pm.Get(key)
	return ok
}

// Set inserts or updates key => value, reusing the existing slot's trailing
// slack when it fits (in-place-update rule), carving an
// EMPTY block when slack would exceed maxValueFree, and otherwise
// reallocating just enough room for the new entry. Returns true if key was
// newly inserted.
func (pm *packedMap) Set(key, val []byte) bool {
	var existing *pmEntry
	pm.scan(func(e pmEntry) bool {
		if bytesEqual(pm.key(e), key) {
			ee := e
			existing = &ee
			return false
		}
		return true
	})

	if existing == nil {
		pm.appendEntry(key, val, 0)
		return true
	}

	capacity := existing.valLen + existing.pad
	if len(val) <= capacity {
		newPad := capacity - len(val)
		if newPad > maxValueFree {
			// Keep pad at the max and carve the remainder into an EMPTY
			// block, unless the remainder is too small to host one (the
			// minimum EMPTY block is 5 bytes: marker + u32 length) — in
			// that corner case the slack is simply left oversized in pad.
			// See DESIGN.md for this deliberately-codified edge case
			// rather than an inferred one.
			remainder := newPad - maxValueFree
			if remainder >= 5 {
				pm.rewriteEntryInPlace(*existing, key, val, maxValueFree)
				emptyPos := existing.entryStart + lenEncodedSize(existing.keyLen) + existing.keyLen +
					lenEncodedSize(len(val)) + 1 + len(val) + maxValueFree
				pm.writeEmptyBlock(emptyPos, remainder)
				pm.setFragmented()
				return false
			}
			pm.rewriteEntryInPlace(*existing, key, val, newPad)
			return false
		}
		pm.rewriteEntryInPlace(*existing, key, val, newPad)
		return false
	}

	// Doesn't fit: free the old slot, append a freshly-sized entry.
	pm.writeEmptyBlock(existing.entryStart, existing.entryEnd-existing.entryStart)
	pm.setFragmented()
	pm.appendEntry(key, val, 0)
	return false
}

func lenEncodedSize(n int) int {
	if n < bigLenMarker {
		return 1
	}
	return 5
}

// rewriteEntryInPlace assumes the entry's key and total slot capacity are
// unchanged and only the value + pad bytes differ in length encoding of
// value (which must be <= original, since this path is only used when val
// fits within the existing klen/vlen-prefix budget for the value length
// encoding class). It rebuilds just the value/pad region.
func (pm *packedMap) rewriteEntryInPlace(e pmEntry, key, val []byte, pad int) {
	vlenBytes := encodeLen(len(val))
	// If the new value's length-prefix width differs from the old one we
	// cannot do a pure byte-for-byte in-place rewrite without shifting
	// subsequent entries; fall back to a full rebuild in that (rare) case.
	oldVlenWidth := lenEncodedSize(e.valLen)
	if len(vlenBytes) != oldVlenWidth {
		pm.writeEmptyBlock(e.entryStart, e.entryEnd-e.entryStart)
		pm.setFragmented()
		pm.appendEntry(key, val, pad)
		return
	}

	pos := e.entryStart + lenEncodedSize(e.keyLen) + e.keyLen
	copy(pm.buf[pos:], vlenBytes)
	pos += len(vlenBytes)
	pm.buf[pos] = byte(pad)
	pos++
	copy(pm.buf[pos:], val)
}

func (pm *packedMap) writeEmptyBlock(pos, length int) {
	if length < 5 {
		// Too small to host an EMPTY header; leave untouched (dead bytes
		// are only possible transiently and are swallowed by the next
		// full rebuild path during Del/Set of an adjoining entry).
		return
	}
	pm.buf[pos] = emptyMarker
	binary.LittleEndian.PutUint32(pm.buf[pos+1:pos+5], uint32(length))
}

func (pm *packedMap) appendEntry(key, val []byte, pad int) {
	klenB := encodeLen(len(key))
	vlenB := encodeLen(len(val))
	entryLen := len(klenB) + len(key) + len(vlenB) + 1 + len(val) + pad

	endPos := len(pm.buf) - 1 // position of END marker
	grown := make([]byte, len(pm.buf)+entryLen)
	copy(grown, pm.buf[:endPos])
	pos := endPos
	copy(grown[pos:], klenB)
	pos += len(klenB)
	copy(grown[pos:], key)
	pos += len(key)
	copy(grown[pos:], vlenB)
	pos += len(vlenB)
	grown[pos] = byte(pad)
	pos++
	copy(grown[pos:], val)
	pos += len(val)
	pos += pad
	grown[pos] = endMarker
	pm.buf = grown
}

// Del removes key, converting its region into an EMPTY block. Returns true
// if the key was present.
func (pm *packedMap) Del(key []byte) bool {
	var target *pmEntry
	pm.scan(func(e pmEntry) bool {
		if bytesEqual(pm.key(e), key) {
			ee := e
			target = &ee
			return false
		}
		return true
	})
	if target == nil {
		return false
	}
	pm.writeEmptyBlock(target.entryStart, target.entryEnd-target.entryStart)
	pm.setFragmented()
	return true
}

// Len counts live entries in O(entries).
func (pm *packedMap) Len() int {
	n := 0
	pm.scan(func(pmEntry) bool { n++; return true })
	return n
}

// All returns a snapshot of every logically-present (key, value) pair.
func (pm *packedMap) All() map[string][]byte {
	out := make(map[string][]byte)
	pm.scan(func(e pmEntry) bool {
		out[string(pm.key(e))] = append([]byte(nil), pm.val(e)...)
		return true
	})
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PackedOrTable is HASH's encoding switch: it starts as a packedMap and
// irreversibly promotes to a Go map (HASH_TABLE encoding) once either the
// entry count or any single field/value exceeds a configured threshold.
type PackedOrTable struct {
	packed *packedMap
	table  map[string][]byte

	entryThreshold int
	valueThreshold int
}

// NewPackedOrTable creates a HASH starting in packed-map encoding.
func NewPackedOrTable(entryThreshold, valueThreshold int) *PackedOrTable {
	return &PackedOrTable{packed: newPackedMap(), entryThreshold: entryThreshold, valueThreshold: valueThreshold}
}

func (p *PackedOrTable) IsPacked() bool { return p.table == nil }

func (p *PackedOrTable) promote() {
	if p.table != nil {
		return
	}
	p.table = p.packed.All()
	p.packed = nil
}

// Set inserts or updates field, promoting to a hash table first if this
// write would exceed either threshold (oversize field/value triggers
// promotion "before insertion" HSET contract).
func (p *PackedOrTable) Set(field, val []byte) bool {
	if p.table == nil {
		willExceedSize := len(field) > p.valueThreshold || len(val) > p.valueThreshold
		willExceedCount := !p.packed.Exists(field) && p.packed.Len()+1 > p.entryThreshold
		if willExceedSize || willExceedCount {
			p.promote()
		}
	}
	if p.table != nil {
		_, existed := p.table[string(field)]
		p.table[string(field)] = append([]byte(nil), val...)
		return !existed
	}
	return p.packed.Set(field, val)
}

func (p *PackedOrTable) Get(field []byte) ([]byte, bool) {
	if p.table != nil {
		v, ok := p.table[string(field)]
		return v, ok
	}
	return p.packed.Get(field)
}

func (p *PackedOrTable) Del(field []byte) bool {
	if p.table != nil {
		_, ok := p.table[string(field)]
		delete(p.table, string(field))
		return ok
	}
	return p.packed.Del(field)
}

func (p *PackedOrTable) Exists(field []byte) bool {
	if p.table != nil {
		_, ok := p.table[string(field)]
		return ok
	}
	return p.packed.Exists(field)
}

func (p *PackedOrTable) Len() int {
	if p.table != nil {
		return len(p.table)
	}
	return p.packed.Len()
}

func (p *PackedOrTable) All() map[string][]byte {
	if p.table != nil {
		out := make(map[string][]byte, len(p.table))
		for k, v := range p.table {
			out[k] = v
		}
		return out
	}
	return p.packed.All()
}
