// Package discovery implements the UDP broadcast responder that lets
// clients on the same subnet find this bridge without a hardcoded
// address. Grounded on the original C++ bridge's UDP discovery
// listener (original_source/TCPBridgeMain.cpp), reimplemented over
// net.UDPConn rather than a raw BSD socket.
package discovery

import (
	"context"
	"fmt"
	"net"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
)

// ProbeMessage is the datagram a client sends to discover a bridge.
const ProbeMessage = "AMM_DISCOVER"

// Serve listens on port for discovery probes and replies to each with
// the TCP serverPort clients should connect to. It runs until ctx is
// canceled or the socket errors.
func Serve(ctx context.Context, port, serverPort int) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("listen discovery udp: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("discovery responder listening", "port", port)

	reply := []byte(fmt.Sprintf("AMM_BRIDGE:%d", serverPort))
	buf := make([]byte, 512)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if string(buf[:n]) != ProbeMessage {
			continue
		}
		if _, err := conn.WriteToUDP(reply, remote); err != nil {
			logger.Warn("discovery reply failed", "remote", remote, "error", err)
		}
	}
}
