package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/dag"
	"github.com/vk/fabr/internal/model"
)

// Executor builds a single target. Implementations must be safe for
// concurrent use; the scheduler guarantees no two workers ever receive
// the same target.
type Executor interface {
	Execute(ctx context.Context, t *model.Target, depArtifacts []model.Artifact, fingerprint string) model.ExecOutcome
}

// Cache is the incremental-build index consulted before and updated
// after each target.
type Cache interface {
	ShouldRebuild(name, fingerprint string) (bool, []model.Artifact)
	Record(name, fingerprint string, artifacts []model.Artifact) error
}

// Fingerprinter computes a target's fingerprint from its inputs and its
// direct dependencies' fingerprints.
type Fingerprinter interface {
	Target(t *model.Target, depFingerprints []string) (string, error)
}

// Options configure one scheduler run.
type Options struct {
	// Workers bounds the number of concurrently building targets.
	Workers int
	// TargetTimeout is the optional per-target wall-clock limit. Zero
	// disables it.
	TargetTimeout time.Duration
}

// Scheduler executes one dependency graph.
type Scheduler struct {
	graph  *dag.Graph
	exec   Executor
	cache  Cache
	hasher Fingerprinter
	opts   Options
}

// New creates a Scheduler over an already validated graph.
func New(graph *dag.Graph, exec Executor, cache Cache, hasher Fingerprinter, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scheduler{graph: graph, exec: exec, cache: cache, hasher: hasher, opts: opts}
}

// job is one dispatched target together with everything the worker
// needs, so workers never read shared scheduler state.
type job struct {
	node *dag.Node
	// depFingerprints are the direct dependencies' fingerprints in
	// declaration order.
	depFingerprints []string
	// depArtifacts are the transitive library artifacts in dependency
	// order.
	depArtifacts []model.Artifact
}

// completion is a worker's report back to the dispatch loop.
type completion struct {
	node        *dag.Node
	status      model.Status
	fingerprint string
	artifacts   []model.Artifact
	diagnostic  string
}

// Run executes the graph and returns the complete mapping from
// qualified name to build result once every target is terminal, or once
// no further progress is possible. Upstream failures surface as Failed
// results, not as an error from Run itself.
func (s *Scheduler) Run(ctx context.Context) map[string]*model.Result {
	logger := ctxlog.FromContext(ctx)
	total := s.graph.Len()
	logger.Info("build started", "targets", total, "workers", s.opts.Workers)

	// Buffered by graph size so neither dispatching a job nor reporting
	// a completion can ever block the other side.
	jobs := make(chan job, total)
	completions := make(chan completion, total)
	for i := 0; i < s.opts.Workers; i++ {
		go s.worker(ctx, jobs, completions)
	}

	results := make(map[string]*model.Result, total)
	byNode := make(map[*dag.Node]*model.Result, total)
	pendingDeps := make(map[*dag.Node]int, total)
	var ready []*dag.Node

	enqueue := func(n *dag.Node) {
		// Keep the ready queue in plan order so dispatch is
		// deterministic among simultaneously ready targets.
		at := len(ready)
		for i, r := range ready {
			if n.PlanIndex() < r.PlanIndex() {
				at = i
				break
			}
		}
		ready = append(ready[:at], append([]*dag.Node{n}, ready[at:]...)...)
	}

	done := 0
	finalize := func(n *dag.Node, res *model.Result) {
		results[n.Name().String()] = res
		byNode[n] = res
		done++
		for _, dependent := range n.Dependents {
			pendingDeps[dependent]--
			if pendingDeps[dependent] == 0 {
				enqueue(dependent)
			}
		}
	}

	for _, n := range s.graph.Plan() {
		pendingDeps[n] = len(n.Deps)
		if len(n.Deps) == 0 {
			ready = append(ready, n)
		}
	}

	inFlight := 0
	cancelled := false
	for done < total {
		for len(ready) > 0 {
			if !cancelled && ctx.Err() != nil {
				logger.Warn("build cancelled, halting dispatch", "in_flight", inFlight)
				cancelled = true
			}
			n := ready[0]
			ready = ready[1:]

			switch {
			case cancelled:
				finalize(n, &model.Result{Name: n.Name(), Status: model.StatusCancelled})
			case s.failedDep(n, byNode) != nil:
				failed := s.failedDep(n, byNode)
				logger.Warn("fast-failing target", "target", n.Name().String(), "dependency", failed.Name.String())
				finalize(n, &model.Result{
					Name:       n.Name(),
					Status:     model.StatusFailed,
					Diagnostic: fmt.Sprintf("not built: dependency %q failed", failed.Name),
				})
			case s.cancelledDep(n, byNode):
				finalize(n, &model.Result{Name: n.Name(), Status: model.StatusCancelled})
			default:
				inFlight++
				jobs <- job{
					node:            n,
					depFingerprints: s.depFingerprints(n, byNode),
					depArtifacts:    s.depArtifacts(n, byNode),
				}
			}
		}
		if done >= total {
			break
		}

		if cancelled {
			if inFlight == 0 {
				// All remaining targets are unreachable; nothing left
				// to await.
				break
			}
			c := <-completions
			inFlight--
			finalize(c.node, resultOf(c))
			continue
		}

		select {
		case c := <-completions:
			inFlight--
			finalize(c.node, resultOf(c))
		case <-ctx.Done():
			logger.Warn("build cancelled, awaiting in-flight targets", "in_flight", inFlight)
			cancelled = true
		}
	}
	close(jobs)

	logger.Info("build finished", "targets", done)
	return results
}

// worker fingerprints, consults the cache, and executes dispatched
// targets. All blocking work lives here, never in the dispatch loop.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan job, completions chan<- completion) {
	for j := range jobs {
		completions <- s.build(ctx, j)
	}
}

func (s *Scheduler) build(ctx context.Context, j job) completion {
	// A job may have been queued before cancellation; refuse it here so
	// only targets that actually started keep running to completion.
	if ctx.Err() != nil {
		return completion{node: j.node, status: model.StatusCancelled}
	}

	logger := ctxlog.FromContext(ctx).With("target", j.node.Name().String())
	t := j.node.Target

	fp, err := s.hasher.Target(t, j.depFingerprints)
	if err != nil {
		return completion{node: j.node, status: model.StatusFailed, diagnostic: err.Error()}
	}

	if rebuild, artifacts := s.cache.ShouldRebuild(t.Name.String(), fp); !rebuild {
		logger.Info("target up to date", "fingerprint", fp)
		return completion{node: j.node, status: model.StatusCached, fingerprint: fp, artifacts: artifacts}
	}

	// Execution runs on a detached context so cancellation never kills
	// an external process mid-write; the per-target timeout still
	// applies.
	execCtx := context.WithoutCancel(ctx)
	if s.opts.TargetTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, s.opts.TargetTimeout)
		defer cancel()
	}

	outcome := s.exec.Execute(execCtx, t, j.depArtifacts, fp)
	if outcome.Err != nil {
		logger.Error("target failed", "error", outcome.Err)
		return completion{node: j.node, status: model.StatusFailed, fingerprint: fp, diagnostic: outcome.Diagnostic}
	}

	if err := s.cache.Record(t.Name.String(), fp, outcome.Artifacts); err != nil {
		logger.Warn("recording cache entry failed", "error", err)
	}
	return completion{node: j.node, status: model.StatusSuccess, fingerprint: fp, artifacts: outcome.Artifacts}
}

func (s *Scheduler) failedDep(n *dag.Node, byNode map[*dag.Node]*model.Result) *model.Result {
	for _, dep := range n.Deps {
		if res := byNode[dep]; res != nil && res.Status == model.StatusFailed {
			return res
		}
	}
	return nil
}

func (s *Scheduler) cancelledDep(n *dag.Node, byNode map[*dag.Node]*model.Result) bool {
	for _, dep := range n.Deps {
		if res := byNode[dep]; res != nil && res.Status == model.StatusCancelled {
			return true
		}
	}
	return false
}

func (s *Scheduler) depFingerprints(n *dag.Node, byNode map[*dag.Node]*model.Result) []string {
	out := make([]string, 0, len(n.Deps))
	for _, dep := range n.Deps {
		out = append(out, byNode[dep].Fingerprint)
	}
	return out
}

func (s *Scheduler) depArtifacts(n *dag.Node, byNode map[*dag.Node]*model.Result) []model.Artifact {
	var out []model.Artifact
	for _, dep := range s.graph.TransitiveDeps(n) {
		out = append(out, byNode[dep].Artifacts...)
	}
	return out
}

func resultOf(c completion) *model.Result {
	return &model.Result{
		Name:        c.node.Name(),
		Status:      c.status,
		Fingerprint: c.fingerprint,
		Artifacts:   c.artifacts,
		Diagnostic:  c.diagnostic,
	}
}
