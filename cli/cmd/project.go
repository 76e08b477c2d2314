package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/BDNK1/flowtest/cli/internal/config"
	"github.com/BDNK1/flowtest/plugins/core"
	httpplugin "github.com/BDNK1/flowtest/plugins/http"
	sqlplugin "github.com/BDNK1/flowtest/plugins/sql"
	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/engine/yaml"
	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// project is a loaded flowtest project: its config, the function registry
// with every plugin registered, the flows, and the executor that runs them.
type project struct {
	l         *slog.Logger
	fs        afero.Fs
	cfg       *config.ProjectConfig
	container *runtime.Container
	app       *runtime.App
	executor  *runtime.Executor
	tp        *sdktrace.TracerProvider
}

type projectOptions struct {
	outputDir    string
	otlpEndpoint string
}

// loadProject reads the project config and flows. Plugins are registered
// but not initialized; call start before running flows.
func loadProject(ctx context.Context, l *slog.Logger, root *rootOptions, opts projectOptions) (*project, error) {
	dir, err := filepath.Abs(root.projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, dir, root.env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.otlpEndpoint != "" {
		cfg.OTLPEndpoint = opts.otlpEndpoint
	}

	p := &project{l: l, fs: fs, cfg: cfg, container: runtime.NewContainer()}

	if err := p.container.RegisterPlugin("core", core.New(l)); err != nil {
		return nil, err
	}
	httpPlugin, err := httpplugin.New(l, cfg.Plugins.HTTP)
	if err != nil {
		return nil, err
	}
	if err := p.container.RegisterPlugin("http", httpPlugin); err != nil {
		return nil, err
	}
	if len(cfg.Plugins.SQL) > 0 {
		sqlPlugin, err := sqlplugin.New(l, cfg.Plugins.SQL)
		if err != nil {
			return nil, err
		}
		if err := p.container.RegisterPlugin("sql", sqlPlugin); err != nil {
			return nil, err
		}
	}

	p.app, err = runtime.NewApp(fs, yaml.NewFlowLoader(fs), cfg.Path(cfg.FlowsDir), p.container)
	if err != nil {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}

	execOpts := []runtime.ExecutorOption{
		runtime.WithSessions(runtime.NewSessionManager(l, cfg.SessionContexts(), httpPlugin.NewClient)),
		runtime.WithStepTimeout(cfg.StepTimeout),
	}
	if cfg.OTLPEndpoint != "" {
		p.tp, err = newTracerProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(p.tp)
		execOpts = append(execOpts, runtime.WithTracer(p.tp.Tracer("github.com/BDNK1/flowtest")))
	}

	resolver := template.New(template.WithFaker(template.NewGoFakeit()))
	evaluator := yaml.NewExpressionEvaluator()
	steps := yaml.NewStepExecutor(
		yaml.NewComposer(fs, cfg.Dir, l),
		resolver,
		evaluator,
		yaml.NewArtifactWriter(fs, cfg.Dir, cfg.Path(cfg.OutputDir), resolver),
		l,
	)
	p.executor = runtime.NewExecutor(l, p.container, evaluator, steps, execOpts...)

	l.Debug("Project loaded",
		"name", cfg.Name,
		"dir", cfg.Dir,
		"flows", len(p.app.Flows),
		"functions", len(p.container.Names()))
	return p, nil
}

func newTracerProvider(ctx context.Context, cfg *config.ProjectConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "flowtest"),
			attribute.String("flowtest.project", cfg.Name),
		)),
	), nil
}

// start initializes the plugins (database connections, HTTP clients)
func (p *project) start(ctx context.Context) error {
	if err := p.container.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize plugins: %w", err)
	}
	return nil
}

// close shuts the plugins down and flushes pending spans
func (p *project) close(ctx context.Context) error {
	var errs []error
	if err := p.container.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}
	return errors.Join(errs...)
}

// validate checks that every step names a registered function
func (p *project) validate() error {
	var errs []error
	for _, id := range p.app.FlowIDs() {
		flow := p.app.Flows[id]
		for _, step := range flow.Steps {
			if !p.container.Has(step.Function) {
				errs = append(errs, &runtime.ConfigError{
					Kind: runtime.ConfigUnknownFunction,
					Path: flow.SourcePath,
					Name: step.Function,
				})
			}
		}
	}
	return errors.Join(errs...)
}
