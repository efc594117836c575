package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
)

func init() {
	_ = logger.Init("error", "")
}

func TestServeRepliesToProbe(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.LocalAddr().(*net.UDPAddr).Port
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = Serve(ctx, port, 4000) }()

	var client *net.UDPConn
	for i := 0; i < 50; i++ {
		client, err = net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	for i := 0; i < 50; i++ {
		if _, err := client.Write([]byte(ProbeMessage)); err != nil {
			t.Fatalf("write probe: %v", err)
		}
		_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		buf := make([]byte, 512)
		n, _, err := client.ReadFromUDP(buf)
		if err == nil {
			if got := string(buf[:n]); got != "AMM_BRIDGE:4000" {
				t.Fatalf("got reply %q", got)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("never received a discovery reply")
}
