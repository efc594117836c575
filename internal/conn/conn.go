// Package conn is the TCP connection layer (spec.md §4.A): it accepts
// client sockets, frames inbound bytes into protocol lines, and
// serializes outbound writes per session. Grounded on the teacher's
// internal/relay/server.go accept loop and handler.go per-connection
// goroutine, adapted from a WebSocket upgrade handshake to a raw
// newline-framed TCP stream.
package conn

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/protocol"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
)

const (
	// maxWriteChunk bounds a single socket write so one slow client
	// behind a congested link doesn't let the kernel send buffer grow
	// without bound.
	maxWriteChunk = 8 * 1024

	// idleTimeout disconnects a session that has sent nothing, not
	// even a keepalive, in this long.
	idleTimeout = 10 * time.Minute

	// keepaliveInterval is how long the server waits without reading
	// anything before writing a synthetic [KEEPALIVE] line.
	keepaliveInterval = 30 * time.Second
)

// Sender wraps a net.Conn with a write lock so interleaved writers
// (the read loop's synchronous replies, the fan-out dispatcher, the
// keepalive ticker) never tear a line in half on the wire.
type Sender struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewSender wraps conn.
func NewSender(c net.Conn) *Sender {
	return &Sender{conn: c}
}

// Send writes data in chunks of at most maxWriteChunk bytes.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(data) > 0 {
		n := len(data)
		if n > maxWriteChunk {
			n = maxWriteChunk
		}
		if _, err := s.conn.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Close closes the underlying connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Handler receives parsed lines and lifecycle events for a session.
// The command/dispatch layer implements this; conn only knows about
// bytes and framing.
type Handler interface {
	OnConnect(session *registry.Session, remoteAddr string)
	OnLine(session *registry.Session, line protocol.Line)
	OnDisconnect(sessionID string)
}

// Server accepts TCP connections and drives one read loop goroutine
// per session.
type Server struct {
	Addr     string
	Registry *registry.Registry
	Handler  Handler

	// Paused, when non-nil and returning true, makes the accept loop
	// close new connections immediately instead of registering them —
	// the disable-sentinel path described in spec.md's design notes.
	Paused func() bool
}

// ListenAndServe binds Addr and serves connections until ctx is
// canceled or the listener errors.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Info("bridge listening", "addr", srv.Addr)

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		if srv.Paused != nil && srv.Paused() {
			_ = c.Close()
			continue
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go srv.serve(ctx, c)
	}
}

func (srv *Server) serve(ctx context.Context, c net.Conn) {
	remoteAddr := c.RemoteAddr().String()
	sender := NewSender(c)
	session := srv.Registry.Register(sender, remoteAddr)

	logger.Info("session connected", "session_id", session.ID, "remote_addr", remoteAddr)
	srv.Handler.OnConnect(session, remoteAddr)

	stopOnCancel := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stopOnCancel()

	defer func() {
		_ = c.Close()
		srv.Registry.Disconnect(session.ID)
		srv.Handler.OnDisconnect(session.ID)
		logger.Info("session disconnected", "session_id", session.ID)
	}()

	var splitter protocol.Splitter
	lastRead := time.Now()
	buf := make([]byte, 4096)

	for {
		_ = c.SetReadDeadline(time.Now().Add(keepaliveInterval))
		n, err := c.Read(buf)
		if n > 0 {
			lastRead = time.Now()
			for _, line := range splitter.Feed(buf[:n]) {
				if line == "" {
					continue
				}
				srv.Handler.OnLine(session, protocol.Parse(line))
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if time.Since(lastRead) >= idleTimeout {
					return
				}
				_ = sender.Send([]byte("[KEEPALIVE]\n"))
				continue
			}
			return
		}
	}
}
