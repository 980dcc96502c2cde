package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/executor"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/session"
	"github.com/vk/fabr/internal/summary"
)

// Run executes one full build: load rules, construct the session,
// execute the plan, and write the summary. Configuration errors abort
// before any build action; target failures surface in the summary and
// as a non-nil error so the process exits non-zero.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	targets, err := a.loader.Load(ctx, a.cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets declared under %s", a.cfg.WorkspaceRoot)
	}
	logger.Info("rules loaded", "targets", len(targets))

	sess, err := session.New(ctx, targets, session.Options{
		OutDir:        a.cfg.OutDir,
		CacheDir:      a.cfg.CacheDir,
		Workers:       a.cfg.WorkerCount,
		TargetTimeout: a.cfg.TargetTimeout,
		Toolchain:     executor.NewGNU(a.cfg.CC, a.cfg.AR),
		Runner:        a.runner,
	})
	if err != nil {
		return err
	}

	results := sess.Run(ctx)

	if err := a.writeSummary(results); err != nil {
		return err
	}
	if failed := summary.FailedCount(results); failed > 0 {
		return fmt.Errorf("build failed: %d target(s) failed", failed)
	}
	return nil
}

func (a *App) writeSummary(results map[string]*model.Result) error {
	if a.cfg.SummaryPath == "" {
		return summary.Write(a.out, results)
	}
	f, err := os.Create(a.cfg.SummaryPath)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	if err := summary.Write(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
