package yaml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/template"
)

// StepExecutor runs one step: compose, resolve, save_from_request, invoke,
// record, evaluate, save_from_response, save_response_body.
type StepExecutor struct {
	composer  *Composer
	resolver  *template.Resolver
	evaluator runtime.ExpressionEvaluator
	artifacts *ArtifactWriter
	l         *slog.Logger
}

func NewStepExecutor(composer *Composer, resolver *template.Resolver, evaluator runtime.ExpressionEvaluator, artifacts *ArtifactWriter, l *slog.Logger) *StepExecutor {
	return &StepExecutor{
		composer:  composer,
		resolver:  resolver,
		evaluator: evaluator,
		artifacts: artifacts,
		l:         l,
	}
}

// Prepare builds the static definitions table: every step's function and
// composed but unresolved parameters, reachable as
// {{definitions.<step_id>.parameters...}} from any step.
func (e *StepExecutor) Prepare(execution *runtime.Execution) {
	defs := make(map[string]any, len(execution.Flow.Steps))
	for _, step := range execution.Flow.Steps {
		def := map[string]any{
			"function":    step.Function,
			"description": step.Description,
		}
		params, err := e.composer.Compose(execution.Flow, step)
		if err != nil {
			e.l.DebugContext(execution, "Step definition not available",
				"flow", execution.Flow.ID, "step", step.ID, "error", err)
		} else {
			def["parameters"] = params
		}
		defs[step.ID] = def
	}
	execution.State.SetDefinitions(defs)
}

func (e *StepExecutor) ExecuteStep(execution *runtime.Execution, step runtime.Step) *runtime.StepReport {
	sr := runtime.NewStepReport(step)
	defer sr.Finish()

	l := e.l.With("flow", execution.Flow.ID, "step", step.ID, "function", step.Function)

	composed, err := e.composer.Compose(execution.Flow, step)
	if err != nil {
		l.ErrorContext(execution, "Unable to compose step parameters", "error", err)
		sr.Fail(runtime.ClassifyError(step.ID, err))
		return sr
	}

	params := e.resolve(execution, step, composed, sr, l)
	sr.Request = params

	if len(step.SaveFromRequest) > 0 {
		e.extract(execution, sr, l, "request", params, step.SaveFromRequest)
	}

	handler, err := execution.Container.Get(step.Function)
	if err != nil {
		sr.Fail(runtime.ClassifyError(step.ID, err))
		return sr
	}

	session := execution.SessionFor(step)
	if session != nil {
		sr.Context = session.Name
	}

	// handlers receive their own copy so the recorded request stays intact
	result, herr := e.invoke(execution, step, handler, session, template.Copy(params).(map[string]any), l)
	if herr == nil && errors.Is(execution.Err(), context.DeadlineExceeded) {
		herr = fmt.Errorf("step exceeded its timeout: %w", context.DeadlineExceeded)
	}

	response := result.ToMap()
	if herr != nil {
		response["error"] = herr.Error()
	}
	sr.Response = response
	sr.FlowControl = result.FlowControl

	if err := execution.State.Record(step.ID, params, response); err != nil {
		l.WarnContext(execution, "History entry not recorded", "error", err)
	}

	failure := e.outcome(execution, step, params, result, response, herr, sr)
	switch {
	case failure == nil:
		sr.Status = runtime.StepPassed
	case result.FlowControl == runtime.FlowControlContinue:
		sr.Status = runtime.StepExpectedFailure
		sr.Error = failure
		sr.Reason = failure.Message
		l.InfoContext(execution, "Step did not meet expectation, continuing", "reason", failure.Message)
	default:
		sr.Fail(failure)
	}
	sr.AddEvents(runtime.NewTraceEvent(runtime.TraceOutcome, levelFor(sr.Status), string(sr.Status),
		map[string]any{"status": string(sr.Status), "ok": result.OK, "status_code": result.Status}))

	if sr.Status == runtime.StepPassed && len(step.SaveFromResponse) > 0 {
		e.extract(execution, sr, l, "response", response, step.SaveFromResponse)
	}

	if cfg := step.SaveResponseBody; cfg != nil && cfg.Enabled && herr == nil {
		e.saveBody(execution, sr, l, cfg, params, response, result.Body)
	}

	return sr
}

// invoke runs the handler. A panic is turned into a permanent step failure
// so that it never takes down the flow or the flows running beside it.
func (e *StepExecutor) invoke(execution *runtime.Execution, step runtime.Step, handler runtime.Handler, session *runtime.Session, params map[string]any, l *slog.Logger) (result runtime.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.ErrorContext(execution, "Handler panicked", "panic", r, "stack", string(debug.Stack()))
			result = runtime.Result{}
			err = runtime.NewFlowError(runtime.ErrorTypePermanent, runtime.ErrorCodeHandlerPanic, step.ID,
				fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	return handler.Execute(execution, session, params, execution.State)
}

// resolve substitutes placeholders. test_data is resolved first so that
// {{testData.x}} sees generated values and the lifted expected block agrees
// with them.
func (e *StepExecutor) resolve(execution *runtime.Execution, step runtime.Step, composed map[string]any, sr *runtime.StepReport, l *slog.Logger) map[string]any {
	ctx := execution.TemplateContext(nil)
	missed := map[string]struct{}{}

	if td, ok := composed[KeyTestData]; ok {
		resolved, misses := e.resolver.Resolve(td, ctx)
		for _, m := range misses {
			missed[m] = struct{}{}
		}
		composed[KeyTestData] = resolved
		ctx["testData"] = resolved
		if m, ok := resolved.(map[string]any); ok && step.Expected == nil {
			if exp, ok := m[KeyExpected]; ok {
				composed[KeyExpected] = exp
			}
		}
	}

	resolved, misses := e.resolver.Resolve(composed, ctx)
	for _, m := range misses {
		missed[m] = struct{}{}
	}
	params, _ := resolved.(map[string]any)

	names := make([]string, 0, len(missed))
	for m := range missed {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		l.WarnContext(execution, "Unresolved placeholder", "placeholder", m)
		sr.AddEvents(runtime.NewTraceEvent(runtime.TracePlaceholderMissing, runtime.LevelWarn,
			"placeholder left unresolved: {{"+m+"}}", map[string]any{"placeholder": m}))
	}

	l.DebugContext(execution, "Resolved parameters", "params", params)
	sr.AddEvents(runtime.NewTraceEvent(runtime.TraceResolvedParameters, runtime.LevelInfo, "",
		map[string]any{"parameters": params}))
	return params
}

// outcome returns nil when the step met its expectation.
func (e *StepExecutor) outcome(execution *runtime.Execution, step runtime.Step, params map[string]any, result runtime.Result, response map[string]any, herr error, sr *runtime.StepReport) *runtime.FlowError {
	if herr != nil {
		fe := runtime.ClassifyError(step.ID, herr)
		sr.AddEvents(runtime.NewTraceEvent(runtime.TraceHandlerError, runtime.LevelWarn, herr.Error(),
			map[string]any{"type": string(fe.Type), "code": fe.Code}))
		return fe
	}

	exp, err := ParseExpectation(params[KeyExpected])
	if err != nil {
		return runtime.NewFlowError(runtime.ErrorTypePermanent, runtime.ErrorCodeConfig, step.ID, err.Error())
	}

	env := execution.TemplateContext(params[KeyTestData])
	env["request"] = params
	env["response"] = response

	mismatches := exp.Evaluate(result, env, e.evaluator)
	if len(mismatches) == 0 {
		return nil
	}
	fe := runtime.NewFlowError(runtime.ErrorTypePermanent, runtime.ErrorCodeOutcomeMismatch, step.ID, strings.Join(mismatches, "; "))
	fe.Meta = map[string]any{"mismatches": mismatches}
	return fe
}

func (e *StepExecutor) extract(execution *runtime.Execution, sr *runtime.StepReport, l *slog.Logger, origin string, source map[string]any, rules map[string]string) {
	events := execution.State.ExtractAndStore(origin, source, rules)
	for _, ev := range events {
		if ev.Level == runtime.LevelWarn {
			l.WarnContext(execution, "Extraction path not found",
				"variable", ev.Fields["variable"],
				"path", ev.Fields["path"],
				"available_keys", ev.Fields["available_keys"],
				"keys_at_stop", ev.Fields["keys_at_stop"])
			continue
		}
		l.InfoContext(execution, "Saved variable", "variable", ev.Fields["variable"], "source", origin)
	}
	sr.AddEvents(events...)
}

func (e *StepExecutor) saveBody(execution *runtime.Execution, sr *runtime.StepReport, l *slog.Logger, cfg *runtime.SaveResponseBody, params, response map[string]any, body any) {
	if e.artifacts == nil {
		return
	}

	ctx := execution.TemplateContext(params[KeyTestData])
	ctx["request"] = params
	ctx["response"] = response

	path, misses, err := e.artifacts.Save(ctx, cfg, body)
	for _, m := range misses {
		l.WarnContext(execution, "Unresolved placeholder in filename", "placeholder", m)
	}
	if err != nil {
		l.WarnContext(execution, "Unable to save response body", "error", err)
		sr.AddEvents(runtime.NewTraceEvent(runtime.TraceArtifactSaved, runtime.LevelWarn, err.Error(), nil))
		return
	}
	l.InfoContext(execution, "Saved response body", "path", path)
	sr.AddEvents(runtime.NewTraceEvent(runtime.TraceArtifactSaved, runtime.LevelInfo, "response body saved",
		map[string]any{"path": path}))
}

func levelFor(s runtime.StepStatus) string {
	if s == runtime.StepFailed {
		return runtime.LevelWarn
	}
	return runtime.LevelInfo
}
