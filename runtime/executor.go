package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/BDNK1/flowtest/runtime"

// Executor orchestrates one flow: it validates the functions the flow needs,
// opens the flow's Execution Contexts, and runs the steps strictly in order,
// delegating each step to a StepExecutor.
type Executor struct {
	l            *slog.Logger
	container    *Container
	evaluator    ExpressionEvaluator
	stepExecutor StepExecutor
	sessions     *SessionManager
	tracer       trace.Tracer
	stepTimeout  time.Duration
}

type ExecutorOption func(*Executor)

// WithSessions sets the manager that opens Execution Contexts.
func WithSessions(m *SessionManager) ExecutorOption {
	return func(e *Executor) { e.sessions = m }
}

func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithStepTimeout sets the timeout applied to steps that declare none.
func WithStepTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.stepTimeout = d }
}

func NewExecutor(l *slog.Logger, container *Container, evaluator ExpressionEvaluator, stepExecutor StepExecutor, opts ...ExecutorOption) *Executor {
	e := &Executor{
		l:            l,
		container:    container,
		evaluator:    evaluator,
		stepExecutor: stepExecutor,
		tracer:       otel.Tracer(tracerName),
		stepTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sessions == nil {
		e.sessions = NewSessionManager(l, nil, nil)
	}
	return e
}

// ExecuteFlow runs flow to completion and returns its report. It never
// returns an error: configuration problems are reported as FlowErrored.
func (e *Executor) ExecuteFlow(ctx context.Context, flow *Flow) *FlowReport {
	ctx, span := e.tracer.Start(ctx, "flow "+flow.ID, trace.WithAttributes(
		attribute.String("flow.id", flow.ID),
		attribute.Int("flow.steps", len(flow.Steps)),
	))
	defer span.End()

	l := e.l.With("flow", flow.ID)

	if err := e.validateFunctions(flow); err != nil {
		l.ErrorContext(ctx, "Flow configuration error", "error", err)
		return e.abort(span, flow, err)
	}

	execution := NewExecution(ctx, flow, e.container)
	sessions, err := e.sessions.Open(flow)
	if err != nil {
		l.ErrorContext(ctx, "Unable to open execution contexts", "error", err)
		return e.abort(span, flow, err)
	}
	execution.Sessions = sessions
	defer e.sessions.Close(flow.ID, sessions)

	report := NewFlowReport(flow)
	report.ExecutionID = execution.ID
	span.SetAttributes(attribute.String("flow.execution_id", execution.ID))

	l.InfoContext(ctx, "Starting flow", "execution_id", execution.ID, "steps", len(flow.Steps))
	e.stepExecutor.Prepare(execution)

	halted := ""
	for _, step := range flow.Steps {
		if halted != "" {
			sr := NewStepReport(step)
			sr.Status = StepSkipped
			sr.Reason = halted
			report.Steps = append(report.Steps, sr)
			continue
		}

		sr := e.runStep(execution, step)
		report.Steps = append(report.Steps, sr)

		switch {
		case sr.Status == StepFailed:
			halted = fmt.Sprintf("previous step %s failed", step.ID)
		case sr.FlowControl == FlowControlStop:
			halted = fmt.Sprintf("flow stopped by step %s", step.ID)
		}
		if halted != "" {
			l.InfoContext(ctx, "Halting flow", "step", step.ID, "reason", halted)
		}
	}

	report.Status = flowStatus(report)
	report.Duration = time.Since(report.StartedAt)
	if report.Status != FlowPassed {
		span.SetStatus(codes.Error, string(report.Status))
	}
	l.InfoContext(ctx, "Flow finished", "status", report.Status, "duration", report.Duration)
	return report
}

func (e *Executor) runStep(execution *Execution, step Step) *StepReport {
	ctx, span := e.tracer.Start(execution, "step "+step.ID, trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.function", step.Function),
	))
	defer span.End()

	l := e.l.With("flow", execution.Flow.ID, "step", step.ID, "function", step.Function)

	run, err := e.evaluateCondition(execution, step)
	if err != nil {
		sr := NewStepReport(step)
		sr.Fail(NewFlowError(ErrorTypePermanent, ErrorCodeCondition, step.ID, err.Error()))
		sr.Finish()
		l.ErrorContext(ctx, "Error evaluating step condition", "condition", step.If, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return sr
	}
	if !run {
		sr := NewStepReport(step)
		sr.Status = StepSkipped
		sr.Reason = "condition not met: " + step.If
		sr.AddEvents(NewTraceEvent(TraceConditionFalse, LevelInfo, sr.Reason, map[string]any{"condition": step.If}))
		sr.Finish()
		l.InfoContext(ctx, "Skipping step", "condition", step.If)
		return sr
	}

	timeout := e.timeoutFor(execution.Flow, step)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l.InfoContext(stepCtx, "Executing step", "timeout", timeout)
	sr := e.stepExecutor.ExecuteStep(execution.WithContext(stepCtx), step)

	for _, ev := range sr.Events {
		span.AddEvent(string(ev.Kind), trace.WithAttributes(ev.Attributes()...))
	}
	span.SetAttributes(attribute.String("step.status", string(sr.Status)))
	if sr.Status == StepFailed {
		msg := sr.Reason
		if sr.Error != nil {
			msg = sr.Error.Error()
		}
		span.SetStatus(codes.Error, msg)
		l.ErrorContext(ctx, "Step failed", "reason", sr.Reason)
	} else {
		l.InfoContext(ctx, "Step finished", "status", sr.Status, "duration", sr.Duration)
	}
	return sr
}

func (e *Executor) evaluateCondition(execution *Execution, step Step) (bool, error) {
	if strings.TrimSpace(step.If) == "" {
		return true, nil
	}

	result, err := e.evaluator.Eval(step.If, execution.TemplateContext(nil))
	if err != nil {
		return false, fmt.Errorf("error evaluating condition %s: %w", step.If, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %s evaluated to %T, expected boolean", step.If, result)
	}
	return b, nil
}

func (e *Executor) timeoutFor(flow *Flow, step Step) time.Duration {
	switch {
	case step.Timeout > 0:
		return step.Timeout
	case flow.Timeout > 0:
		return flow.Timeout
	default:
		return e.stepTimeout
	}
}

// validateFunctions fails fast when a step names an unregistered function.
func (e *Executor) validateFunctions(flow *Flow) error {
	var missing []string
	for _, step := range flow.Steps {
		if !e.container.Has(step.Function) {
			missing = append(missing, fmt.Sprintf("%s (step %s)", step.Function, step.ID))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ConfigError{
		Kind: ConfigUnknownFunction,
		Name: strings.Join(missing, ", "),
	}
}

func (e *Executor) abort(span trace.Span, flow *Flow, err error) *FlowReport {
	fe := ClassifyError("", err)
	report := SkipFlow(flow, FlowErrored, "flow not started: "+err.Error())
	report.Error = fe
	span.SetStatus(codes.Error, err.Error())
	return report
}

func flowStatus(r *FlowReport) FlowStatus {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return FlowFailed
		}
	}
	return FlowPassed
}
