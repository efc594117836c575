package pod

import (
	"context"
	"testing"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus/memtransport"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(manikinID, key, line string) {}
func (noopDispatcher) Broadcast(line string)                {}

func TestGetFallsBackToDefault(t *testing.T) {
	p := New()
	ctx := context.Background()
	transport := memtransport.New()
	if _, err := Provision(ctx, p, DefaultManikinID, transport, noopDispatcher{}, false); err != nil {
		t.Fatalf("provision: %v", err)
	}

	if _, ok := p.Get(""); !ok {
		t.Error("expected empty id to resolve to default manikin")
	}
	if _, ok := p.Get("unknown-mid"); !ok {
		t.Error("expected unknown mid to fall back to default manikin")
	}
}

func TestGetResolvesNamedManikin(t *testing.T) {
	p := New()
	ctx := context.Background()
	if _, err := Provision(ctx, p, DefaultManikinID, memtransport.New(), noopDispatcher{}, false); err != nil {
		t.Fatalf("provision default: %v", err)
	}
	if _, err := Provision(ctx, p, "manikin-2", memtransport.New(), noopDispatcher{}, false); err != nil {
		t.Fatalf("provision manikin-2: %v", err)
	}

	m, ok := p.Get("manikin-2")
	if !ok {
		t.Fatal("expected manikin-2 to resolve")
	}
	if m.ID != "manikin-2" {
		t.Errorf("got id %q", m.ID)
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 manikins, got %d", p.Len())
	}
}

func TestGetOnEmptyPodFails(t *testing.T) {
	p := New()
	if _, ok := p.Get(""); ok {
		t.Error("expected empty pod to fail resolution")
	}
}
