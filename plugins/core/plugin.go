// Package core provides handlers that need no external system: set, wait,
// fail and log.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BDNK1/flowtest/runtime/plugin"
)

// WaitInput defines input for core.wait
type WaitInput struct {
	Duration time.Duration `json:"duration" validate:"gt=0"`
}

// FailInput defines input for core.fail
type FailInput struct {
	Message     string `json:"message"`
	FlowControl string `json:"flow_control" validate:"omitempty,oneof=continue stop"`
}

// LogInput defines input for core.log
type LogInput struct {
	Message string         `json:"message" validate:"required"`
	Level   string         `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Fields  map[string]any `json:"fields"`
}

type Plugin struct {
	l *slog.Logger
}

func New(l *slog.Logger) *Plugin {
	return &Plugin{l: l}
}

func (p *Plugin) Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"set":  plugin.HandlerFunc(p.Set),
		"wait": plugin.HandlerFunc(p.Wait),
		"fail": plugin.HandlerFunc(p.Fail),
		"log":  plugin.HandlerFunc(p.Log),
	}
}

// Set echoes its parameters as the response body, so save_from_response can
// compute variables from templates (body.total: "{{flow.a}}-{{flow.b}}").
func (p *Plugin) Set(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	body := make(map[string]any, len(params))
	for k, v := range params {
		body[k] = v
	}
	return plugin.Result{OK: true, Body: body}, nil
}

// Wait sleeps for duration or until the step deadline.
func (p *Plugin) Wait(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	var in WaitInput
	if err := plugin.DecodeInput(params, &in); err != nil {
		return plugin.Result{}, err
	}
	if err := plugin.ValidateInput(in); err != nil {
		return plugin.Result{}, fmt.Errorf("core.wait: %w", err)
	}

	timer := time.NewTimer(in.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return plugin.Result{OK: true, Body: map[string]any{"waited": in.Duration.String()}}, nil
	case <-ctx.Done():
		return plugin.Result{}, ctx.Err()
	}
}

// Fail reports ok=false with message.
func (p *Plugin) Fail(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	in := FailInput{Message: "failed by core.fail"}
	if err := plugin.DecodeInput(params, &in); err != nil {
		return plugin.Result{}, err
	}
	if err := plugin.ValidateInput(in); err != nil {
		return plugin.Result{}, fmt.Errorf("core.fail: %w", err)
	}
	return plugin.Result{
		OK:          false,
		Body:        map[string]any{"message": in.Message},
		FlowControl: plugin.FlowControl(in.FlowControl),
	}, nil
}

// Log writes message to the run log with the flow variables it names in
// fields.
func (p *Plugin) Log(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	var in LogInput
	if err := plugin.DecodeInput(params, &in); err != nil {
		return plugin.Result{}, err
	}
	if err := plugin.ValidateInput(in); err != nil {
		return plugin.Result{}, fmt.Errorf("core.log: %w", err)
	}

	args := make([]any, 0, len(in.Fields)*2)
	for k, v := range in.Fields {
		args = append(args, k, v)
	}

	level := slog.LevelInfo
	switch in.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	p.l.Log(ctx, level, in.Message, args...)
	return plugin.Result{OK: true, Body: map[string]any{"message": in.Message}}, nil
}
