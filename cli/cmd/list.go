package cmd

import (
	"context"

	"github.com/BDNK1/flowtest/cli/internal/ui"
	"github.com/spf13/cobra"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var tags, excludeTags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the flows of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProject(context.Background(), newLogger(cmd.ErrOrStderr(), root), root, projectOptions{})
			if err != nil {
				return err
			}

			flows, err := p.app.Select(nil, tags, excludeTags)
			if err != nil {
				return err
			}
			ui.RenderFlows(cmd.OutOrStdout(), flows)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Only list flows carrying one of these tags")
	cmd.Flags().StringSliceVar(&excludeTags, "exclude-tags", nil, "Hide flows carrying one of these tags")

	return cmd
}
