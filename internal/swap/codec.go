package swap

import (
	"encoding/binary"
	"fmt"
	"math"

	"gofastdb/internal/value"
)

// Encode serializes obj's payload into a flat byte slice, the swap
// subsystem's own on-disk shape (deliberately simpler than internal/rdb's
// key+expire+opcode framing: a swapped value has no key or TTL of its own
// while off in the page file, since those stay in DB.Dict/Expires).
func Encode(obj *value.Object) []byte {
	switch obj.Type {
	case value.TypeString:
		return appendBytes(nil, obj.Bytes())
	case value.TypeList:
		elems := obj.List.All()
		out := make([]byte, 0, 4+len(elems)*8)
		out = appendUint32(out, uint32(len(elems)))
		for _, e := range elems {
			out = appendBytes(out, e)
		}
		return out
	case value.TypeSet:
		out := appendUint32(nil, uint32(len(obj.Set)))
		for m := range obj.Set {
			out = appendBytes(out, []byte(m))
		}
		return out
	case value.TypeZSet:
		entries := obj.ZSet.All()
		out := appendUint32(nil, uint32(len(entries)))
		for _, e := range entries {
			var scoreBuf [8]byte
			binary.BigEndian.PutUint64(scoreBuf[:], math.Float64bits(e.Score))
			out = append(out, scoreBuf[:]...)
			out = appendBytes(out, []byte(e.Member))
		}
		return out
	case value.TypeHash:
		all := obj.Hash.All()
		out := appendUint32(nil, uint32(len(all)))
		for f, v := range all {
			out = appendBytes(out, []byte(f))
			out = appendBytes(out, v)
		}
		return out
	default:
		return nil
	}
}

// Decode reconstructs a fresh in-memory Object of type t from swapped bytes,
// the inverse of Encode.
func Decode(t value.Type, b []byte, entryThreshold, valueThreshold int) (*value.Object, error) {
	switch t {
	case value.TypeString:
		s, _, err := readBytes(b, 0)
		if err != nil {
			return nil, err
		}
		return value.NewString(s), nil
	case value.TypeList:
		n, off, err := readUint32(b, 0)
		if err != nil {
			return nil, err
		}
		obj := value.NewList()
		for i := uint32(0); i < n; i++ {
			var elem []byte
			elem, off, err = readBytes(b, off)
			if err != nil {
				return nil, err
			}
			obj.List.RightPush(elem)
		}
		return obj, nil
	case value.TypeSet:
		n, off, err := readUint32(b, 0)
		if err != nil {
			return nil, err
		}
		obj := value.NewSet()
		for i := uint32(0); i < n; i++ {
			var m []byte
			m, off, err = readBytes(b, off)
			if err != nil {
				return nil, err
			}
			obj.Set[string(m)] = struct{}{}
		}
		return obj, nil
	case value.TypeZSet:
		n, off, err := readUint32(b, 0)
		if err != nil {
			return nil, err
		}
		obj := value.NewZSet()
		for i := uint32(0); i < n; i++ {
			if off+8 > len(b) {
				return nil, errTruncated
			}
			score := math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
			off += 8
			var member []byte
			member, off, err = readBytes(b, off)
			if err != nil {
				return nil, err
			}
			obj.ZSet.Insert(string(member), score)
		}
		return obj, nil
	case value.TypeHash:
		n, off, err := readUint32(b, 0)
		if err != nil {
			return nil, err
		}
		obj := value.NewHash(entryThreshold, valueThreshold)
		for i := uint32(0); i < n; i++ {
			var field, val []byte
			field, off, err = readBytes(b, off)
			if err != nil {
				return nil, err
			}
			val, off, err = readBytes(b, off)
			if err != nil {
				return nil, err
			}
			obj.Hash.Set(field, val)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("swap: unknown type %d", t)
	}
}

func appendUint32(dst []byte, n uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return append(dst, buf[:]...)
}

func appendBytes(dst []byte, b []byte) []byte {
	dst = appendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func readUint32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, errTruncated
	}
	return binary.BigEndian.Uint32(b[off : off+4]), off + 4, nil
}

func readBytes(b []byte, off int) ([]byte, int, error) {
	n, off, err := readUint32(b, off)
	if err != nil {
		return nil, off, err
	}
	if off+int(n) > len(b) {
		return nil, off, errTruncated
	}
	return b[off : off+int(n)], off + int(n), nil
}

type codecError string

func (e codecError) Error() string { return string(e) }

const errTruncated = codecError("swap: truncated payload")
