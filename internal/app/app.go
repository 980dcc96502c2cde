package app

import (
	"context"
	"io"

	"github.com/vk/fabr/internal/executor"
	"github.com/vk/fabr/internal/model"
)

// RuleLoader produces the rule set of a workspace. The HCL loader is
// the concrete implementation; tests may substitute their own.
type RuleLoader interface {
	Load(ctx context.Context, root string) ([]*model.Target, error)
}

// App is one configured application instance.
type App struct {
	out    io.Writer
	cfg    *Config
	loader RuleLoader
	// runner overrides external process execution; nil selects the real
	// toolchain runner.
	runner executor.CommandRunner
}

// NewApp assembles an App from its collaborators.
func NewApp(out io.Writer, cfg *Config, loader RuleLoader) *App {
	return &App{out: out, cfg: cfg, loader: loader}
}
