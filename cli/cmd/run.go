package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/BDNK1/flowtest/cli/internal/graph"
	"github.com/BDNK1/flowtest/cli/internal/runner"
	"github.com/BDNK1/flowtest/cli/internal/ui"
	"github.com/BDNK1/flowtest/runtime"
	"github.com/spf13/cobra"
)

type runOptions struct {
	tags         []string
	excludeTags  []string
	parallel     int
	reportDir    string
	otlpEndpoint string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flow-id...]",
		Short: "Run flows and write a report",
		Long: `Run executes the selected flows (all flows when none are named) and writes
report.json to the output directory. Flows named by depends_on run first;
a flow whose dependency does not pass is skipped.

Example:
  flowtest run
  flowtest run checkout --env staging
  flowtest run --tags smoke --exclude-tags slow --parallel 4
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlows(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "Only run flows carrying one of these tags")
	cmd.Flags().StringSliceVar(&opts.excludeTags, "exclude-tags", nil, "Skip flows carrying one of these tags")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "Maximum number of flows running at once (default from flowtest.yaml)")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Directory for report.json and saved response bodies (default from flowtest.yaml)")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/gRPC endpoint")

	return cmd
}

func runFlows(cmd *cobra.Command, root *rootOptions, opts *runOptions, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l := newLogger(cmd.ErrOrStderr(), root)

	p, err := loadProject(ctx, l, root, projectOptions{outputDir: opts.reportDir, otlpEndpoint: opts.otlpEndpoint})
	if err != nil {
		return err
	}

	g, err := selectFlows(p.app, args, opts.tags, opts.excludeTags)
	if err != nil {
		return err
	}

	if err := p.start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.close(context.Background()); err != nil {
			l.Warn("Shutdown failed", "error", err)
		}
	}()

	parallel := p.cfg.Parallel
	if opts.parallel > 0 {
		parallel = opts.parallel
	}

	l.Info("Running flows", "project", p.cfg.Name, "flows", len(g.Nodes()), "parallel", parallel)
	started := time.Now()
	reports := runner.New(l, p.executor, parallel).Run(ctx, g)
	report := runtime.NewRunReport(started, reports)

	path, err := runtime.WriteReport(p.fs, p.cfg.Path(p.cfg.OutputDir), report)
	if err != nil {
		return err
	}

	ui.RenderSummary(cmd.OutOrStdout(), report)
	fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", path)

	if report.Failed() {
		return fmt.Errorf("%d of %d flows did not pass", report.Summary.Failed+report.Summary.Errored, report.Summary.Flows)
	}
	return nil
}

// selectFlows builds the dependency graph of every loaded flow and narrows
// it to the selected flows plus everything they depend on.
func selectFlows(app *runtime.App, ids, tags, excludeTags []string) (*graph.Graph, error) {
	all := make([]*runtime.Flow, 0, len(app.Flows))
	for _, id := range app.FlowIDs() {
		all = append(all, app.Flows[id])
	}
	g, err := graph.BuildGraph(all)
	if err != nil {
		return nil, err
	}

	selected, err := app.Select(ids, tags, excludeTags)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no flows selected")
	}

	selectedIDs := make([]string, 0, len(selected))
	for _, f := range selected {
		selectedIDs = append(selectedIDs, f.ID)
	}
	return g.Subgraph(selectedIDs)
}
