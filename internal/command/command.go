// Package command interprets [SYS] subcommands (spec.md §4.H): the
// administrative channel instructors and the daemon's own tooling use
// to drive simulation state and the host's supervised services.
// Grounded on the teacher's internal/relay chat-command dispatch
// (a prefix-routed switch over a single admin channel), adapted from
// chat slash-commands to simulation control verbs.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/manikin"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/pod"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
)

// ServiceSupervisor restarts or toggles a host service backing a
// manikin (physiology engine, scenario engine, etc). The production
// implementation shells out to supervisorctl; tests inject a recording
// fake.
type ServiceSupervisor interface {
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error
}

// Interpreter dispatches [SYS] payloads against a pod and a registry.
type Interpreter struct {
	Pod        *pod.Pod
	Registry   *registry.Registry
	Supervisor ServiceSupervisor
}

// Handle parses and executes a single SYS payload (the text after the
// "[SYS]" prefix has already been stripped by the caller). mid selects
// the target manikin the same way a modification envelope's mid key
// does.
func (in *Interpreter) Handle(ctx context.Context, mid, payload string) error {
	verb, arg, _ := strings.Cut(payload, ":")
	verb = strings.TrimSpace(verb)
	arg = strings.TrimSpace(arg)

	m, ok := in.Pod.Get(mid)
	if !ok {
		return fmt.Errorf("command: no manikin available for mid %q", mid)
	}

	switch verb {
	case "START_SIM":
		return m.PublishSimulationControl(ctx, "RUN")
	case "STOP_SIM", "END_SIMULATION":
		return m.PublishSimulationControl(ctx, "HALT")
	case "PAUSE_SIM":
		return m.PublishSimulationControl(ctx, "HALT")
	case "RESET_SIM":
		return m.PublishSimulationControl(ctx, "RESET")

	case "LOAD_SCENARIO":
		m.SetScenario(arg)
		return m.PublishSimulationControl(ctx, "RESET")

	case "LOAD_STATE":
		return m.PublishSimulationControl(ctx, "SAVE")

	case "START_SERVICE":
		return in.Supervisor.Start(ctx, arg)
	case "STOP_SERVICE":
		return in.Supervisor.Stop(ctx, arg)
	case "RESTART_SERVICE":
		return in.Supervisor.Restart(ctx, arg)

	case "SET_PRIMARY":
		in.Registry.MutateRecord(arg, func(rec *registry.ConnectionRecord) {
			rec.Role = "primary"
		})
		return nil

	case "ENABLE_REMOTE", "DISABLE_REMOTE":
		in.Registry.MutateRecord(arg, func(rec *registry.ConnectionRecord) {
			if verb == "ENABLE_REMOTE" {
				rec.Role = "remote"
			} else {
				rec.Role = ""
			}
		})
		return nil

	case "UPDATE_CLIENT":
		return in.updateClient(arg)

	case "KICK":
		return in.kick(arg)

	default:
		return fmt.Errorf("command: unrecognized SYS verb %q", verb)
	}
}

// updateClient expects arg shaped "client_id;field=value;...", mirroring
// the kvp body of a modification envelope.
func (in *Interpreter) updateClient(arg string) error {
	id, kvBody, ok := strings.Cut(arg, ";")
	if !ok {
		return fmt.Errorf("command: UPDATE_CLIENT missing fields: %q", arg)
	}
	var updated bool
	in.Registry.MutateRecord(id, func(rec *registry.ConnectionRecord) {
		for _, seg := range strings.Split(kvBody, ";") {
			k, v, ok := strings.Cut(seg, "=")
			if !ok {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(k)) {
			case "client_name":
				rec.ClientName = v
				updated = true
			case "learner_name":
				rec.LearnerName = v
				updated = true
			case "role":
				rec.Role = v
				updated = true
			}
		}
	})
	if !updated {
		return fmt.Errorf("command: UPDATE_CLIENT had no recognized fields: %q", kvBody)
	}
	return nil
}

func (in *Interpreter) kick(id string) error {
	session, ok := in.Registry.Resolve(id)
	if !ok {
		in.Registry.Remove(id)
		return nil
	}
	_ = session.Close()
	in.Registry.Remove(id)
	return nil
}

// ManikinFor is a convenience for callers that already stripped mid and
// want the resolved manikin without re-running Handle's verb switch.
func (in *Interpreter) ManikinFor(mid string) (*manikin.Manikin, bool) {
	return in.Pod.Get(mid)
}
