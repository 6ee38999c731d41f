// Package dynstr implements a growable, binary-safe byte buffer, grounded
// on redis-1.3.6's sds.c: an explicit length (no trailing-NUL reliance),
// append/copy/substring/trim/split/compare. Go slices already track length
// and capacity, so this is a thin value type rather than the hand-rolled
// header+flexible-array struct sds.c uses — fidelity here is to behavior,
// not byte layout.
package dynstr

import "bytes"

// String is a binary-safe byte buffer. The zero value is an empty string.
type String []byte

// New copies b into a new String.
func New(b []byte) String {
	out := make(String, len(b))
	copy(out, b)
	return out
}

// FromString creates a String from a Go string.
func FromString(s string) String {
	return String(s)
}

// Append returns a new String with b appended. Callers that hold a shared
// String (refcount > 1, or an INT-encoded value promoted to RAW) must pass a
// freshly copied receiver — the "decode/copy before appending" rule for
// APPEND lives at the value-object layer, not here.
func (s String) Append(b []byte) String {
	out := make(String, len(s)+len(b))
	copy(out, s)
	copy(out[len(s):], b)
	return out
}

// Sub returns the inclusive substring [start,end], negative indices counting
// from the tail, per SUBSTR's contract. Returns (nil, false)
// when start > end or start is past the end of the string.
func (s String) Sub(start, end int) (String, bool) {
	n := len(s)
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return nil, false
	}
	return New(s[start : end+1]), true
}

// Trim removes leading/trailing bytes present in cutset.
func (s String) Trim(cutset string) String {
	return String(bytes.Trim(s, cutset))
}

// Split tokenizes on sep, mirroring the inline-protocol space tokenizer.
func (s String) Split(sep byte) []String {
	parts := bytes.Split(s, []byte{sep})
	out := make([]String, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		out = append(out, New(p))
	}
	return out
}

// Compare does memcmp on the common prefix, then breaks ties on length,
// matching the same ordering sds.c uses for this primitive.
func (s String) Compare(other String) int {
	n := min(len(s), len(other))
	if c := bytes.Compare(s[:n], other[:n]); c != 0 {
		return c
	}
	return len(s) - len(other)
}
