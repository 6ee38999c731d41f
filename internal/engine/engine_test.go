package engine

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gofastdb/internal/command"
	"gofastdb/internal/database"
)

// testHarness wires an Engine running on its own goroutine to a connected
// client pipe, mirroring how Serve hands an accepted net.Conn to
// handleConnection.
type testHarness struct {
	t      *testing.T
	e      *Engine
	client net.Conn
	r      *bufio.Reader
}

func newHarness(t *testing.T, configure ...func(*Engine)) *testHarness {
	t.Helper()
	server := database.NewServer(4)
	table := command.NewTable()
	e := New(server, table, time.Hour)
	e.Log = zerolog.New(io.Discard)
	for _, f := range configure {
		f(e)
	}

	serverConn, clientConn := net.Pipe()
	go e.Run()
	e.handleConnection(serverConn)

	t.Cleanup(func() {
		e.Stop()
		clientConn.Close()
	})

	return &testHarness{t: t, e: e, client: clientConn, r: bufio.NewReader(clientConn)}
}

func (h *testHarness) send(argv ...string) {
	h.t.Helper()
	var buf []byte
	buf = append(buf, []byte("*"+itoaEngine(len(argv))+"\r\n")...)
	for _, a := range argv {
		buf = append(buf, []byte("$"+itoaEngine(len(a))+"\r\n")...)
		buf = append(buf, a...)
		buf = append(buf, '\r', '\n')
	}
	_, err := h.client.Write(buf)
	require.NoError(h.t, err)
}

// readReply reads exactly one RESP reply's raw bytes off the pipe.
func (h *testHarness) readReply() string {
	h.t.Helper()
	line, err := h.r.ReadString('\n')
	require.NoError(h.t, err)
	out := line

	switch line[0] {
	case '+', '-', ':':
		return out
	case '$':
		n := parseRESPInt(line)
		if n < 0 {
			return out
		}
		body := make([]byte, n+2)
		_, err := readFullInto(h.r, body)
		require.NoError(h.t, err)
		return out + string(body)
	case '*':
		n := parseRESPInt(line)
		for i := 0; i < n; i++ {
			out += h.readReply()
		}
		return out
	}
	return out
}

func readFullInto(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func parseRESPInt(line string) int {
	neg := false
	n := 0
	started := false
	for i := 1; i < len(line); i++ {
		c := line[i]
		if c == '\r' || c == '\n' {
			break
		}
		if c == '-' && !started {
			neg = true
			started = true
			continue
		}
		started = true
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func itoaEngine(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func TestEnginePingPong(t *testing.T) {
	h := newHarness(t)
	h.send("PING")
	assert.Equal(t, "+PONG\r\n", h.readReply())
}

func TestEngineSetGet(t *testing.T) {
	h := newHarness(t)
	h.send("SET", "k", "v")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("GET", "k")
	assert.Equal(t, "$1\r\nv\r\n", h.readReply())
}

func TestEngineUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.send("NOTACOMMAND")
	reply := h.readReply()
	assert.Contains(t, reply, "ERR")
	assert.Contains(t, reply, "unknown command")
}

func TestEngineSelectSwitchesDB(t *testing.T) {
	h := newHarness(t)
	h.send("SELECT", "1")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SET", "k", "in-db-1")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SELECT", "0")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("GET", "k")
	assert.Equal(t, "$-1\r\n", h.readReply())
}

func TestEngineRequiresAuthWhenPasswordSet(t *testing.T) {
	h := newHarness(t, func(e *Engine) { e.RequirePass = "secret" })

	h.send("GET", "k")
	reply := h.readReply()
	assert.Contains(t, reply, "not permitted")

	h.send("AUTH", "wrong")
	reply = h.readReply()
	assert.Contains(t, reply, "invalid password")

	h.send("AUTH", "secret")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("GET", "k")
	assert.Equal(t, "$-1\r\n", h.readReply())
}

func TestEngineMultiExecAppliesQueuedWrites(t *testing.T) {
	h := newHarness(t)

	h.send("MULTI")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SET", "a", "1")
	assert.Equal(t, "+QUEUED\r\n", h.readReply())

	h.send("SET", "b", "2")
	assert.Equal(t, "+QUEUED\r\n", h.readReply())

	h.send("EXEC")
	reply := h.readReply()
	assert.Equal(t, "*2\r\n+OK\r\n+OK\r\n", reply)

	h.send("GET", "a")
	assert.Equal(t, "$1\r\n1\r\n", h.readReply())
}

func TestEngineMultiDiscard(t *testing.T) {
	h := newHarness(t)

	h.send("MULTI")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SET", "a", "1")
	assert.Equal(t, "+QUEUED\r\n", h.readReply())

	h.send("DISCARD")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("GET", "a")
	assert.Equal(t, "$-1\r\n", h.readReply())
}

func TestEngineExecAbortsOnQueuedUnknownCommand(t *testing.T) {
	h := newHarness(t)

	h.send("MULTI")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("NOTACOMMAND")
	reply := h.readReply()
	assert.Contains(t, reply, "ERR")

	h.send("EXEC")
	reply = h.readReply()
	assert.Contains(t, reply, "EXECABORT")
}

func TestEngineMonitorAcknowledgesAndReceivesPropagatedWrites(t *testing.T) {
	h := newHarness(t)
	h.send("MONITOR")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SET", "k", "v")
	reply := h.readReply()
	assert.Contains(t, reply, "SET")
	assert.Contains(t, reply, "k")
}

func TestEngineSlaveOfNoOneAcknowledges(t *testing.T) {
	h := newHarness(t)
	h.send("SLAVEOF", "NO", "ONE")
	assert.Equal(t, "+OK\r\n", h.readReply())
}

func TestEngineSaveWritesSnapshotSynchronously(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, func(e *Engine) {
		e.RDBPath = filepath.Join(dir, "dump.rdb")
	})

	h.send("SET", "k", "v")
	assert.Equal(t, "+OK\r\n", h.readReply())

	h.send("SAVE")
	assert.Equal(t, "+OK\r\n", h.readReply())

	_, err := os.Stat(filepath.Join(dir, "dump.rdb"))
	assert.NoError(t, err)
}

func TestEngineBgSaveRejectsConcurrentRequest(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, func(e *Engine) {
		e.RDBPath = filepath.Join(dir, "dump.rdb")
		e.saveInFlight = true
	})

	h.send("BGSAVE")
	reply := h.readReply()
	assert.Contains(t, reply, "background save in progress")
}
