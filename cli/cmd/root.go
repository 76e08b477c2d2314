package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	projectDir string
	env        string
	debug      bool
	logFormat  string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flowtest",
		Short: "flowtest - declarative API test flows",
		Long: `flowtest runs YAML-defined API test flows. Each flow is an ordered list of
steps that call a function, resolve {{...}} placeholders against the values
saved by earlier steps, and check the outcome.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.projectDir, "project", "p", ".", "Project directory containing flowtest.yaml")
	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Environment name, loads .env.<env> before .env")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the slog logger every component receives. Records are
// rendered by charmbracelet/log.
func newLogger(w io.Writer, opts *rootOptions) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    opts.debug,
		Prefix:          "flowtest",
	})
	handler.SetLevel(log.InfoLevel)
	if opts.debug {
		handler.SetLevel(log.DebugLevel)
	}
	if opts.logFormat == "json" {
		handler.SetFormatter(log.JSONFormatter)
	}

	return slog.New(handler)
}
