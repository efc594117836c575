package command

import (
	"context"
	"testing"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus/memtransport"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/manikin"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/pod"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
)

type fakeSupervisor struct {
	calls []string
}

func (f *fakeSupervisor) Start(ctx context.Context, service string) error {
	f.calls = append(f.calls, "start:"+service)
	return nil
}
func (f *fakeSupervisor) Stop(ctx context.Context, service string) error {
	f.calls = append(f.calls, "stop:"+service)
	return nil
}
func (f *fakeSupervisor) Restart(ctx context.Context, service string) error {
	f.calls = append(f.calls, "restart:"+service)
	return nil
}

type fakeSender struct {
	closed bool
}

func (f *fakeSender) Send(data []byte) error { return nil }
func (f *fakeSender) Close() error           { f.closed = true; return nil }

func newTestInterpreter(t *testing.T) (*Interpreter, *manikin.Manikin, *fakeSupervisor) {
	t.Helper()
	p := pod.New()
	m, err := pod.Provision(context.Background(), p, pod.DefaultManikinID, memtransport.New(), noopDispatcher{}, false)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	// Provision starts the manikin's bus subscriptions in the background;
	// give its settle delay time to finish before any command publishes.
	time.Sleep(400 * time.Millisecond)
	sup := &fakeSupervisor{}
	return &Interpreter{Pod: p, Registry: registry.New(), Supervisor: sup}, m, sup
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(manikinID, key, line string) {}
func (noopDispatcher) Broadcast(line string)                {}

func TestHandleStartSim(t *testing.T) {
	in, m, _ := newTestInterpreter(t)
	if err := in.Handle(context.Background(), "", "START_SIM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, state := m.StatusTriple()
	if state != "RUN" {
		t.Errorf("expected RUN, got %q", state)
	}
}

func TestHandleResetSim(t *testing.T) {
	in, m, _ := newTestInterpreter(t)
	if err := in.Handle(context.Background(), "", "RESET_SIM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, state := m.StatusTriple()
	if state != "RESET" {
		t.Errorf("expected RESET, got %q", state)
	}
}

func TestHandleServiceVerbsCallSupervisor(t *testing.T) {
	in, _, sup := newTestInterpreter(t)
	if err := in.Handle(context.Background(), "", "RESTART_SERVICE:physiology"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sup.calls) != 1 || sup.calls[0] != "restart:physiology" {
		t.Errorf("got %v", sup.calls)
	}
}

func TestHandleUnknownVerb(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	if err := in.Handle(context.Background(), "", "NOT_A_VERB"); err == nil {
		t.Error("expected error for unrecognized verb")
	}
}

func TestHandleKickClosesAndRemovesSession(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	sender := &fakeSender{}
	session := in.Registry.Register(sender, "127.0.0.1:1")

	if err := in.Handle(context.Background(), "", "KICK:"+session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sender.closed {
		t.Error("expected session to be closed on KICK")
	}
	if _, ok := in.Registry.Record(session.ID); ok {
		t.Error("expected record fully removed on KICK")
	}
}

func TestHandleUpdateClient(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	in.Registry.MutateRecord("c1", func(rec *registry.ConnectionRecord) {})

	if err := in.Handle(context.Background(), "", "UPDATE_CLIENT:c1;client_name=Jane;role=instructor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ := in.Registry.Record("c1")
	if rec.ClientName != "Jane" || rec.Role != "instructor" {
		t.Errorf("got %+v", rec)
	}
}

func TestHandleNoManikinForUnknownMidWithEmptyPod(t *testing.T) {
	in := &Interpreter{Pod: pod.New(), Registry: registry.New(), Supervisor: &fakeSupervisor{}}
	if err := in.Handle(context.Background(), "nope", "START_SIM"); err == nil {
		t.Error("expected error when pod has no manikins at all")
	}
}
