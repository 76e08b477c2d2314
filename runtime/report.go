package runtime

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type StepStatus string

const (
	StepPassed          StepStatus = "passed"
	StepFailed          StepStatus = "failed"
	StepSkipped         StepStatus = "skipped"
	StepExpectedFailure StepStatus = "expected_failure"
)

type FlowStatus string

const (
	FlowPassed  FlowStatus = "passed"
	FlowFailed  FlowStatus = "failed"
	FlowSkipped FlowStatus = "skipped"
	FlowErrored FlowStatus = "error"
)

type StepReport struct {
	StepID      string         `json:"step_id"`
	Description string         `json:"description,omitempty"`
	Function    string         `json:"function"`
	Context     string         `json:"context,omitempty"`
	Status      StepStatus     `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Request     map[string]any `json:"request,omitempty"`
	Response    map[string]any `json:"response,omitempty"`
	Error       *FlowError     `json:"error,omitempty"`
	FlowControl FlowControl    `json:"flow_control,omitempty"`
	Events      []TraceEvent   `json:"events,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration_ns"`
}

func NewStepReport(step Step) *StepReport {
	return &StepReport{
		StepID:      step.ID,
		Description: step.Description,
		Function:    step.Function,
		StartedAt:   time.Now(),
	}
}

func (r *StepReport) AddEvents(events ...TraceEvent) {
	r.Events = append(r.Events, events...)
}

// Fail marks the step failed with err.
func (r *StepReport) Fail(err *FlowError) {
	r.Status = StepFailed
	r.Error = err
	r.Reason = err.Message
}

func (r *StepReport) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

type FlowReport struct {
	FlowID      string        `json:"flow_id"`
	ExecutionID string        `json:"execution_id,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Source      string        `json:"source,omitempty"`
	Status      FlowStatus    `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Error       *FlowError    `json:"error,omitempty"`
	Steps       []*StepReport `json:"steps"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

func NewFlowReport(flow *Flow) *FlowReport {
	return &FlowReport{
		FlowID:      flow.ID,
		Description: flow.Description,
		Tags:        flow.Tags,
		Source:      flow.SourcePath,
		Steps:       make([]*StepReport, 0, len(flow.Steps)),
		StartedAt:   time.Now(),
	}
}

// Step returns the report of stepID, or nil.
func (r *FlowReport) Step(stepID string) *StepReport {
	for _, s := range r.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// SkipFlow reports the whole flow as skipped without running it.
func SkipFlow(flow *Flow, status FlowStatus, reason string) *FlowReport {
	r := NewFlowReport(flow)
	r.Status = status
	r.Reason = reason
	for _, step := range flow.Steps {
		s := NewStepReport(step)
		s.Status = StepSkipped
		s.Reason = reason
		r.Steps = append(r.Steps, s)
	}
	return r
}

type Summary struct {
	Flows   int `json:"flows"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
	Steps   int `json:"steps"`
}

type RunReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Flows     []*FlowReport `json:"flows"`
	Summary   Summary       `json:"summary"`
}

func NewRunReport(started time.Time, flows []*FlowReport) *RunReport {
	r := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		Duration:  time.Since(started),
		Flows:     flows,
	}
	for _, f := range flows {
		r.Summary.Flows++
		r.Summary.Steps += len(f.Steps)
		switch f.Status {
		case FlowPassed:
			r.Summary.Passed++
		case FlowFailed:
			r.Summary.Failed++
		case FlowSkipped:
			r.Summary.Skipped++
		case FlowErrored:
			r.Summary.Errored++
		}
	}
	return r
}

// Failed reports whether any flow failed or errored.
func (r *RunReport) Failed() bool {
	return r.Summary.Failed > 0 || r.Summary.Errored > 0
}

// WriteReport writes the run report as indented JSON to dir/report.json and
// returns the file path.
func WriteReport(fs afero.Fs, dir string, r *RunReport) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error encoding report: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("error writing report: %w", err)
	}
	return path, nil
}
