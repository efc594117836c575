package command

import (
	"context"
	"fmt"
	"os/exec"
)

// SupervisorCtl drives host services via supervisorctl, the same way
// the original bridge's START_SERVICE/STOP_SERVICE/RESTART_SERVICE
// subcommands controlled the physiology and scenario engines running
// alongside it.
type SupervisorCtl struct {
	// Bin is the supervisorctl binary path; empty defaults to
	// "supervisorctl" resolved from PATH.
	Bin string
}

func (s SupervisorCtl) bin() string {
	if s.Bin == "" {
		return "supervisorctl"
	}
	return s.Bin
}

func (s SupervisorCtl) run(ctx context.Context, verb, service string) error {
	cmd := exec.CommandContext(ctx, s.bin(), verb, service)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("supervisorctl %s %s: %w: %s", verb, service, err, out)
	}
	return nil
}

func (s SupervisorCtl) Start(ctx context.Context, service string) error {
	return s.run(ctx, "start", service)
}

func (s SupervisorCtl) Stop(ctx context.Context, service string) error {
	return s.run(ctx, "stop", service)
}

func (s SupervisorCtl) Restart(ctx context.Context, service string) error {
	return s.run(ctx, "restart", service)
}
