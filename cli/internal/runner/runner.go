// Package runner executes a set of flows in depends_on order.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BDNK1/flowtest/cli/internal/graph"
	"github.com/BDNK1/flowtest/runtime"
	"golang.org/x/sync/errgroup"
)

// Runner runs the flows of a dependency graph level by level. Flows within a
// level are independent and run concurrently, at most parallel at a time.
type Runner struct {
	l        *slog.Logger
	flows    runtime.FlowRunner
	parallel int
}

func New(l *slog.Logger, flows runtime.FlowRunner, parallel int) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{l: l, flows: flows, parallel: parallel}
}

// Run executes every flow of g and returns the reports in topological order.
// A flow whose dependency did not pass is reported skipped without running,
// as is every flow not yet started when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, g *graph.Graph) []*runtime.FlowReport {
	reports := make(map[string]*runtime.FlowReport, len(g.Nodes()))

	for _, level := range g.Levels() {
		results := make([]*runtime.FlowReport, len(level))

		var eg errgroup.Group
		eg.SetLimit(r.parallel)
		for i, id := range level {
			flow := g.Flow(id)
			if ctx.Err() != nil {
				results[i] = runtime.SkipFlow(flow, runtime.FlowSkipped, "run cancelled")
				continue
			}
			if dep := blockedBy(g, reports, id); dep != "" {
				r.l.Warn("Skipping flow", "flow", id, "dependency", dep)
				results[i] = runtime.SkipFlow(flow, runtime.FlowSkipped, fmt.Sprintf("dependency %s did not pass", dep))
				continue
			}
			eg.Go(func() error {
				results[i] = r.flows.ExecuteFlow(ctx, flow)
				return nil
			})
		}
		_ = eg.Wait()

		for i, id := range level {
			reports[id] = results[i]
		}
	}

	out := make([]*runtime.FlowReport, 0, len(reports))
	for _, id := range g.TopologicalSort() {
		out = append(out, reports[id])
	}
	return out
}

func blockedBy(g *graph.Graph, reports map[string]*runtime.FlowReport, id string) string {
	for _, dep := range g.GetDependencies(id) {
		if r, ok := reports[dep]; !ok || r.Status != runtime.FlowPassed {
			return dep
		}
	}
	return ""
}
