// Package engine implements the single-mutator event loop plus the
// per-connection networking: one goroutine (Run) is the sole mutator of
// database.Server state, honoring a "single main task drives all command
// execution" constraint, while every accepted connection gets its own
// reader/writer goroutine that hands parsed requests to the engine over a
// channel and blocks for the reply.
//
// Grounded on the original server's handleConnection goroutine-per-client
// model, generalized from direct storage-map access into message passing
// with a central dispatcher.
package engine

import (
	"bufio"
	"net"
	"sync"

	"gofastdb/internal/protocol"
)

// clientFlags mirrors the per-client flag set.
type clientFlags uint8

const (
	flagSlave clientFlags = 1 << iota
	flagMaster
	flagMonitor
)

// Client is one connected socket's server-side state.
type Client struct {
	ID   uint64
	conn net.Conn

	reader *bufio.Reader
	Out    *protocol.Writer

	mu      sync.Mutex
	dbIndex int
	flags   clientFlags

	authenticated bool
	inMulti       bool
	multiError    bool
	queue         [][][]byte
}

func newClient(id uint64, conn net.Conn) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		Out:    protocol.NewWriter(conn),
	}
}

func (c *Client) setFlag(f clientFlags)    { c.flags |= f }
func (c *Client) clearFlag(f clientFlags)  { c.flags &^= f }
func (c *Client) hasFlag(f clientFlags) bool { return c.flags&f != 0 }

// request is one parsed command awaiting the engine goroutine.
type request struct {
	client *Client
	argv   [][]byte
	reply  chan response
}

// response is what the engine goroutine hands back to the connection
// goroutine that submitted a request.
type response struct {
	bytes []byte
	block *blockInfo
	close bool
}

// blockInfo tells the connection goroutine to call blocking.Await itself
// (the protocol: suspension never happens on the engine's own goroutine).
type blockInfo struct {
	keys     []string
	deadline int64
}
