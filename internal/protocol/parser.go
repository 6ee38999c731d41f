// Package protocol implements the two request dialects and the reply
// writer: inline (space-tokenised, CRLF-terminated) and
// multi-bulk (length-prefixed, fully binary-safe). Framing is restartable
// across a bufio.Reader — Go's buffered reader already retains unconsumed
// bytes belonging to the next pipelined request, preserving them for the
// following pipelined read.
//
// Grounded on the original server's readMessage, generalized to the
// line-and-bulk RESP dialect, and on redis-1.3.6-master/redis-cli.c for
// the inline-vs-multibulk first-byte sniff.
package protocol

import (
	"bufio"
	"io"
	"strconv"

	"gofastdb/internal/protoerr"
)

const (
	maxInlineLen = 256 * 1024 * 1024 // the protocol cap, order 256 MiB
	maxBulkLen   = 1024 * 1024 * 1024 // the protocol cap, order 1 GiB
)

// BulkFlagFunc reports whether the named command declares the BULK flag
//: when true, the final inline token is reinterpreted as a
// byte count for the actual final argument.
type BulkFlagFunc func(commandName string) bool

// ReadRequest parses exactly one request (inline or multi-bulk) from r,
// returning its argv. bulkFlag is consulted only for inline requests.
func ReadRequest(r *bufio.Reader, bulkFlag BulkFlagFunc) ([][]byte, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == '*' {
		return readMultiBulk(r)
	}
	return readInline(r, bulkFlag)
}

func readLine(r *bufio.Reader, maxLen int) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxLen {
		return nil, protoerr.Protocol("request too large")
	}
	// Trim trailing CRLF or LF.
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return []byte(line[:n]), nil
}

func readInline(r *bufio.Reader, bulkFlag BulkFlagFunc) ([][]byte, error) {
	line, err := readLine(r, maxInlineLen)
	if err != nil {
		return nil, err
	}
	tokens := splitSpaces(line)
	if len(tokens) == 0 {
		return nil, nil
	}

	if bulkFlag != nil && bulkFlag(string(tokens[0])) && len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		n, err := strconv.Atoi(string(last))
		if err != nil || n < 0 || n > maxBulkLen {
			return nil, protoerr.Protocol("invalid bulk length in inline command")
		}
		payload := make([]byte, n+2) // +2 for trailing CRLF
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		tokens[len(tokens)-1] = payload[:n]
	}
	return toSlices(tokens), nil
}

func splitSpaces(line []byte) [][]byte {
	var out [][]byte
	start := -1
	for i, b := range line {
		if b == ' ' {
			if start >= 0 {
				out = append(out, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, line[start:])
	}
	return out
}

func toSlices(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	copy(out, in)
	return out
}

func readMultiBulk(r *bufio.Reader) ([][]byte, error) {
	header, err := readLine(r, maxInlineLen)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != '*' {
		return nil, protoerr.Protocol("expected '*'")
	}
	count, err := strconv.Atoi(string(header[1:]))
	if err != nil {
		return nil, protoerr.Protocol("invalid multibulk count")
	}
	if count <= 0 {
		return [][]byte{}, nil
	}
	if count > 1024*1024 {
		return nil, protoerr.Protocol("multibulk count too large")
	}

	argv := make([][]byte, count)
	for i := range count {
		bulkHeader, err := readLine(r, maxInlineLen)
		if err != nil {
			return nil, err
		}
		if len(bulkHeader) == 0 || bulkHeader[0] != '$' {
			return nil, protoerr.Protocol("expected '$'")
		}
		blen, err := strconv.Atoi(string(bulkHeader[1:]))
		if err != nil || blen < 0 || blen > maxBulkLen {
			return nil, protoerr.Protocol("invalid bulk length")
		}
		buf := make([]byte, blen+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		argv[i] = buf[:blen]
	}
	return argv, nil
}
