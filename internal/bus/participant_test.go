package bus_test

import (
	"context"
	"testing"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus/memtransport"
)

func TestParticipantPublishSubscribeRoundTrip(t *testing.T) {
	transport := memtransport.New()
	p := bus.NewParticipant("manikin_1", transport)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := make(chan bus.PhysiologyValueSample, 1)
	if err := bus.Subscribe(p, bus.TopicPhysiologyValue, func(v bus.PhysiologyValueSample) {
		got <- v
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := bus.PhysiologyValueSample{Name: "HR", Value: 72.5}
	if err := p.Publish(context.Background(), bus.TopicPhysiologyValue, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case v := <-got:
		if v != want {
			t.Errorf("got %+v, want %+v", v, want)
		}
	default:
		t.Fatal("handler was not invoked synchronously")
	}
}

func TestParticipantNewUUIDUnique(t *testing.T) {
	transport := memtransport.New()
	p := bus.NewParticipant("manikin_1", transport)
	a := p.NewUUID()
	b2 := p.NewUUID()
	if a == "" || b2 == "" || a == b2 {
		t.Errorf("expected distinct non-empty UUIDs, got %q and %q", a, b2)
	}
}
