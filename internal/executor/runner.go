package executor

import (
	"context"
	"os/exec"

	"github.com/vk/fabr/internal/ctxlog"
)

// CommandRunner executes toolchain invocations. The returned output is
// the combined stdout and stderr of the process, surfaced verbatim in
// diagnostics.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs invocations as external processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("running toolchain command", "program", inv.Program, "args", inv.Args)

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	return cmd.CombinedOutput()
}
