package engine

import (
	"net"
	"time"

	"gofastdb/internal/blocking"
	"gofastdb/internal/protocol"
)

// DBIndex returns the client's currently selected database index.
func (c *Client) DBIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbIndex
}

func (c *Client) setDBIndex(n int) {
	c.mu.Lock()
	c.dbIndex = n
	c.mu.Unlock()
}

// handleConnection registers a new Client and starts its serve goroutine.
// Called only from the single Serve accept loop, so e.nextID needs no
// synchronization of its own.
func (e *Engine) handleConnection(conn net.Conn) {
	e.nextID++
	c := newClient(e.nextID, conn)
	e.register <- c
	go e.serveClient(c)
}

// serveClient is the per-connection goroutine: it frames
// requests, hands them to the engine, and drains whatever reply comes
// back, including parking itself in internal/blocking for BLPOP/BRPOP
// (the protocol — suspension never touches the engine's own goroutine).
func (e *Engine) serveClient(c *Client) {
	defer func() {
		c.Out.DrainAll()
		c.conn.Close()
		e.unregister <- c
	}()

	for {
		argv, err := protocol.ReadRequest(c.reader, e.Table.IsBulk)
		if err != nil {
			return
		}
		if len(argv) == 0 {
			continue
		}

		replyCh := make(chan response, 1)
		select {
		case e.requests <- &request{client: c, argv: argv, reply: replyCh}:
		case <-e.stop:
			return
		}

		resp := <-replyCh
		if resp.block != nil {
			db := e.Server.DBAt(c.DBIndex())
			bytes := blocking.Await(db, c.ID, resp.block.keys, resp.block.deadline, time.Now().Unix())
			c.Out.Queue(bytes)
		} else if resp.bytes != nil {
			c.Out.Queue(resp.bytes)
		}

		if err := c.Out.DrainAll(); err != nil {
			return
		}
		if resp.close {
			return
		}
	}
}
