package engine

import (
	"net"
)

// Listen opens the TCP listener with net.ListenTCP: SO_REUSEADDR comes from
// the net package's own default for listeners, and the listen backlog is
// the net package's default (the system limit), not a fixed 511. Serve sets
// TCP_NODELAY and SO_KEEPALIVE on each accepted socket.
//
// Grounded on the original server's Start, using the *net.TCPListener-typed
// accept loop below rather than the original server's untyped net.Listener
// so per-socket TCP options can be set.
func Listen(bind string, port int) (*net.TCPListener, error) {
	addr := &net.TCPAddr{IP: net.ParseIP(bind), Port: port}
	return net.ListenTCP("tcp", addr)
}

// Serve accepts connections from ln until Stop is called or ln is closed,
// spawning one goroutine per connection: networking I/O remains
// per-connection goroutines, never the engine's own.
func (e *Engine) Serve(ln *net.TCPListener) error {
	for {
		conn, err := ln.AcceptTCP()
		if err != nil {
			select {
			case <-e.stop:
				return nil
			default:
				e.Log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		conn.SetNoDelay(true)
		conn.SetKeepAlive(true)
		e.handleConnection(conn)
	}
}
