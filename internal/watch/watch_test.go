package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/config"
)

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bridge.yaml")
	sentinelPath := filepath.Join(dir, "disabled")
	if err := os.WriteFile(configPath, []byte("server_port: 4000\n"), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	reloaded := make(chan config.Config, 1)
	cw, err := NewConfigWatcher(dir, configPath, sentinelPath, func(cfg config.Config) {
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cw.Run(ctx)

	if err := os.WriteFile(configPath, []byte("server_port: 5050\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.ServerPort != 5050 {
			t.Errorf("expected reloaded server_port 5050, got %d", cfg.ServerPort)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload callback to fire")
	}
}

func TestConfigWatcherTracksSentinel(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bridge.yaml")
	sentinelPath := filepath.Join(dir, "disabled")

	cw, err := NewConfigWatcher(dir, configPath, sentinelPath, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cw.Run(ctx)

	if cw.Disabled() {
		t.Fatal("expected not disabled before sentinel exists")
	}

	if err := os.WriteFile(sentinelPath, nil, 0644); err != nil {
		t.Fatalf("create sentinel: %v", err)
	}
	waitFor(t, func() bool { return cw.Disabled() })

	if err := os.Remove(sentinelPath); err != nil {
		t.Fatalf("remove sentinel: %v", err)
	}
	waitFor(t, func() bool { return !cw.Disabled() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
