// Package session ties one build run together. A Session owns the
// registry, dependency graph, incremental cache and scheduler for a
// single rule set; independent sessions share no mutable state, so
// multiple builds can run side by side in one process.
package session

import (
	"context"
	"time"

	"github.com/vk/fabr/internal/cache"
	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/dag"
	"github.com/vk/fabr/internal/executor"
	"github.com/vk/fabr/internal/fingerprint"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/registry"
	"github.com/vk/fabr/internal/scheduler"
)

// Options configure a Session.
type Options struct {
	// OutDir is the artifact output root, partitioned per target.
	OutDir string
	// CacheDir holds the persisted incremental index.
	CacheDir string
	// Workers bounds concurrent target builds.
	Workers int
	// TargetTimeout is the optional per-target wall-clock limit.
	TargetTimeout time.Duration
	// Toolchain defaults to the GNU toolchain when nil.
	Toolchain executor.Toolchain
	// Runner defaults to external process execution when nil.
	Runner executor.CommandRunner
}

// Session is one configured build over a fixed rule set.
type Session struct {
	registry *registry.Registry
	graph    *dag.Graph
	cache    *cache.Cache
	sched    *scheduler.Scheduler
}

// New registers the given targets, builds and validates the dependency
// graph, and wires the execution pipeline. Any configuration error
// (invalid rule, duplicate or unknown target, cycle) fails construction
// before a single build action runs.
func New(ctx context.Context, targets []*model.Target, opts Options) (*Session, error) {
	logger := ctxlog.FromContext(ctx)

	reg := registry.New()
	for _, t := range targets {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	logger.Debug("targets registered", "count", reg.Len())

	graph, err := dag.Build(ctx, reg)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(opts.CacheDir)
	if err != nil {
		return nil, err
	}

	tc := opts.Toolchain
	if tc == nil {
		tc = executor.NewGNU("", "")
	}
	runner := opts.Runner
	if runner == nil {
		runner = executor.ExecRunner{}
	}

	exec := executor.New(opts.OutDir, tc, runner)
	sched := scheduler.New(graph, exec, c, fingerprint.NewHasher(), scheduler.Options{
		Workers:       opts.Workers,
		TargetTimeout: opts.TargetTimeout,
	})

	return &Session{registry: reg, graph: graph, cache: c, sched: sched}, nil
}

// Plan returns the session's deterministic build plan.
func (s *Session) Plan() []*dag.Node {
	return s.graph.Plan()
}

// Run executes the build and returns the complete result map. Upstream
// target failures are reflected in the results, not returned as an
// error.
func (s *Session) Run(ctx context.Context) map[string]*model.Result {
	return s.sched.Run(ctx)
}
