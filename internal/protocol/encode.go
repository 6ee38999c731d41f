package protocol

import "strconv"

// Status renders a single-line status reply: "+OK\r\n".
func Status(s string) []byte {
	b := make([]byte, 0, len(s)+3)
	b = append(b, '+')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// Error renders an error reply: "-ERR message\r\n". Callers are expected to
// have already prefixed msg with the error code (ERR, WRONGTYPE, ...).
func Error(msg string) []byte {
	b := make([]byte, 0, len(msg)+3)
	b = append(b, '-')
	b = append(b, msg...)
	return append(b, '\r', '\n')
}

// Integer renders ":N\r\n".
func Integer(n int64) []byte {
	b := make([]byte, 0, 16)
	b = append(b, ':')
	b = strconv.AppendInt(b, n, 10)
	return append(b, '\r', '\n')
}

// NilBulk renders the null bulk reply "$-1\r\n" (missing key, etc.).
func NilBulk() []byte {
	return []byte("$-1\r\n")
}

// Bulk renders a binary-safe bulk reply: "$len\r\ndata\r\n".
func Bulk(data []byte) []byte {
	b := make([]byte, 0, len(data)+16)
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(data)), 10)
	b = append(b, '\r', '\n')
	b = append(b, data...)
	return append(b, '\r', '\n')
}

// NilMultiBulk renders the null array reply "*-1\r\n" (BLPOP timeout, etc.).
func NilMultiBulk() []byte {
	return []byte("*-1\r\n")
}

// MultiBulkHeader renders "*n\r\n"; callers append n Bulk/Integer replies.
func MultiBulkHeader(n int) []byte {
	b := make([]byte, 0, 16)
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, '\r', '\n')
}

// MultiBulk concatenates a header with each member's Bulk encoding, for
// handlers that already hold the full result set in memory (LRANGE, KEYS,
// SMEMBERS, ...).
func MultiBulk(members [][]byte) []byte {
	out := MultiBulkHeader(len(members))
	for _, m := range members {
		out = append(out, Bulk(m)...)
	}
	return out
}

// WrapReplies concatenates a header with replies that are already
// fully-encoded RESP values, for EXEC's combined reply (each queued
// command's own Status/Error/Integer/Bulk/MultiBulk output, not raw member
// bytes that still need Bulk-encoding themselves).
func WrapReplies(replies [][]byte) []byte {
	out := MultiBulkHeader(len(replies))
	for _, r := range replies {
		out = append(out, r...)
	}
	return out
}
