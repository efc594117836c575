package conn

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/protocol"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
)

func init() {
	_ = logger.Init("error", "")
}

type recordingHandler struct {
	mu          sync.Mutex
	lines       []protocol.Line
	connected   []string
	disconnects []string
}

func (h *recordingHandler) OnConnect(session *registry.Session, remoteAddr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, session.ID)
}

func (h *recordingHandler) OnLine(session *registry.Session, line protocol.Line) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *recordingHandler) OnDisconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects = append(h.disconnects, sessionID)
}

func (h *recordingHandler) waitForLines(t *testing.T, n int) []protocol.Line {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.lines)
		h.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Line, len(h.lines))
	copy(out, h.lines)
	return out
}

func TestServerAcceptsAndParsesLines(t *testing.T) {
	reg := registry.New()
	handler := &recordingHandler{}
	srv := &Server{Addr: "127.0.0.1:0", Registry: reg, Handler: handler}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	srv.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = srv.ListenAndServe(ctx)
	}()

	var client net.Conn
	for i := 0; i < 50; i++ {
		client, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("MODULE_NAME=Monitor\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := handler.waitForLines(t, 1)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Kind != protocol.KindModuleName || lines[0].Value != "Monitor" {
		t.Errorf("got %+v", lines[0])
	}
}

func TestSenderChunksLargeWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sender := NewSender(server)
	payload := make([]byte, maxWriteChunk*2+10)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(payload) }()

	received := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(received) < len(payload) {
		n, err := client.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		received = append(received, buf[:n]...)
	}

	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(received) != string(payload) {
		t.Error("chunked write did not reassemble to the original payload")
	}
}
