// Package value implements the polymorphic value object model: a tagged
// variant over {String, List, Set, SortedSet, Hash}, each with its own
// encoding sub-variant, refcounting, and optional swap metadata.
//
// Generalized from a single `any` payload field into explicit per-type
// fields so the encoding invariants are enforceable by the type system
// rather than by runtime type assertions alone.
package value

import (
	"sync/atomic"

	"gofastdb/internal/container"
	"gofastdb/internal/zset"
)

// Type tags the kind of a value.
type Type uint8

const (
	TypeString Type = iota
	TypeList
	TypeSet
	TypeZSet
	TypeHash
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	case TypeHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Encoding tags the in-memory representation of a value's payload.
type Encoding uint8

const (
	EncRaw Encoding = iota
	EncInt
	EncPackedMap
	EncHashTable
)

// Storage tracks a value's swap-subsystem lifecycle.
// MEMORY is the only storage state reachable when swap is disabled.
type Storage uint8

const (
	StorageMemory Storage = iota
	StorageSwapping
	StorageSwapped
	StorageLoading
)

// Object is a reference-counted polymorphic value cell.
//
// Only one of the payload fields is meaningful at a time, selected by Type;
// when Storage != StorageMemory none of them are (the payload has been
// freed and SwapType records the type to restore on load).
type Object struct {
	refcount int32

	Type     Type
	Encoding Encoding

	Raw  []byte // STRING/RAW, or the decoded form of STRING/INT on demand
	Int  int64  // STRING/INT
	List *container.List[[]byte]
	Set  map[string]struct{}
	ZSet *zset.ZSet
	Hash *PackedOrTable

	// Swap metadata, meaningful only when the owning database has swap
	// enabled.
	Storage   Storage
	SwapPage  int
	SwapPages int
	SwapType  Type
	ATime     int64 // last-access Unix seconds, used by swap candidate scoring
}

// NewString creates a STRING value, choosing INT encoding when b parses as
// a round-trippable integer (the protocol "Integer-form detection" reused
// here for the in-memory encoding, matching Redis's own zipmap/object
// encoding overlap).
func NewString(b []byte) *Object {
	o := &Object{Type: TypeString, refcount: 1}
	if iv, ok := tryParseInt(b); ok {
		o.Encoding = EncInt
		o.Int = iv
		return o
	}
	o.Encoding = EncRaw
	o.Raw = append([]byte(nil), b...)
	return o
}

// NewList creates an empty LIST value.
func NewList() *Object {
	return &Object{Type: TypeList, Encoding: EncRaw, List: container.New[[]byte](), refcount: 1}
}

// NewSet creates an empty SET value.
func NewSet() *Object {
	return &Object{Type: TypeSet, Encoding: EncHashTable, Set: make(map[string]struct{}), refcount: 1}
}

// NewZSet creates an empty ZSET value.
func NewZSet() *Object {
	return &Object{Type: TypeZSet, Encoding: EncRaw, ZSet: zset.New(), refcount: 1}
}

// NewHash creates an empty HASH value, starting PACKED_MAP-encoded.
func NewHash(entryThreshold int, valueThreshold int) *Object {
	return &Object{
		Type:     TypeHash,
		Encoding: EncPackedMap,
		Hash:     NewPackedOrTable(entryThreshold, valueThreshold),
		refcount: 1,
	}
}

// Bytes returns the STRING value's canonical decimal/byte form regardless
// of encoding, without mutating the object (used by GET, APPEND's read
// side, AOF rewrite, and the snapshot writer).
func (o *Object) Bytes() []byte {
	if o.Encoding == EncInt {
		return []byte(formatInt(o.Int))
	}
	return o.Raw
}

// Retain increments the refcount and returns o.
func (o *Object) Retain() *Object {
	atomic.AddInt32(&o.refcount, 1)
	return o
}

// Release decrements the refcount; callers must stop using o once it
// returns true (refcount hit zero).
func (o *Object) Release() bool {
	return atomic.AddInt32(&o.refcount, -1) == 0
}

// RefCount reports the current refcount (used by swap candidate selection,
// which requires refcount == 1 ).
func (o *Object) RefCount() int32 {
	return atomic.LoadInt32(&o.refcount)
}

// EnsureUnshared returns an Object safe to mutate in place: itself if
// refcount == 1, otherwise a shallow clone with its own refcount of 1. This
// is the "clone first" rule the protocol requires for APPEND and similar
// mutations of a possibly-shared string.
func (o *Object) EnsureUnshared() *Object {
	if o.RefCount() <= 1 {
		if o.Encoding == EncInt {
			// INT-encoded values have no backing buffer to mutate in place;
			// decode to RAW so the caller can append.
			o.Raw = append([]byte(nil), o.Bytes()...)
			o.Encoding = EncRaw
		}
		return o
	}
	clone := &Object{Type: o.Type, Encoding: EncRaw, refcount: 1}
	clone.Raw = append([]byte(nil), o.Bytes()...)
	return clone
}
