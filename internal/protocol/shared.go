package protocol

import "strconv"

// Shared is the pre-rendered reply pool:
// a fixed set of frequently-sent replies encoded once at startup and reused
// by every command handler and every client, avoiding a fresh allocation
// and encode pass for the handful of replies that dominate real traffic
// (OK, PONG, small integers, nil). Grounded on the original server's statsCache
// pattern (precomputed, reused payloads) generalized to full reply bodies.
type Shared struct {
	OK             []byte
	PONG           []byte
	NilBulk        []byte
	NilMultiBulk   []byte
	EmptyMultiBulk []byte
	CZero          []byte // ":0\r\n", common false/absent result
	COne           []byte // ":1\r\n", common true/single-mutation result
	CNegOne        []byte // ":-1\r\n", common "no TTL"/"not found" integer

	smallInts [smallIntPoolSize][]byte
}

const smallIntPoolSize = 10000

// NewShared builds the shared reply pool once at server startup.
func NewShared() *Shared {
	s := &Shared{
		OK:             Status("OK"),
		PONG:           Status("PONG"),
		NilBulk:        NilBulk(),
		NilMultiBulk:   NilMultiBulk(),
		EmptyMultiBulk: MultiBulkHeader(0),
		CZero:          Integer(0),
		COne:           Integer(1),
		CNegOne:        Integer(-1),
	}
	for i := range s.smallInts {
		s.smallInts[i] = Integer(int64(i))
	}
	return s
}

// Int returns the pooled encoding of n when it falls in the pooled range,
// else encodes a fresh reply.
func (s *Shared) Int(n int64) []byte {
	if n >= 0 && n < smallIntPoolSize {
		return s.smallInts[n]
	}
	return Integer(n)
}

// ErrorKnown renders a pooled-style error reply for one of the fixed error
// codes in the protocol (the code itself isn't pooled — arg text varies too
// much to share — but callers use this instead of hand-formatting "-CODE ").
func ErrorKnown(code, msg string) []byte {
	return Error(code + " " + msg)
}

// IntString is a small helper so command handlers formatting count replies
// (LLEN, SCARD, ...) don't need strconv in scope themselves.
func IntString(n int64) string {
	return strconv.FormatInt(n, 10)
}
