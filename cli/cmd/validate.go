package cmd

import (
	"context"
	"fmt"

	"github.com/BDNK1/flowtest/cli/internal/graph"
	"github.com/BDNK1/flowtest/runtime"
	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check flow definitions without running them",
		Long: `Validate loads flowtest.yaml and every flow file, then checks that step ids
are unique, every function is registered and depends_on forms no cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProject(context.Background(), newLogger(cmd.ErrOrStderr(), root), root, projectOptions{})
			if err != nil {
				return err
			}
			if err := p.validate(); err != nil {
				return err
			}

			flows := make([]*runtime.Flow, 0, len(p.app.Flows))
			for _, id := range p.app.FlowIDs() {
				flows = append(flows, p.app.Flows[id])
			}
			if _, err := graph.BuildGraph(flows); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d flows valid\n", len(flows))
			return nil
		},
	}
}
