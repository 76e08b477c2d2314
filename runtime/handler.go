package runtime

import (
	"context"

	"github.com/BDNK1/flowtest/runtime/template"
)

// FlowControl lets a handler override the default stop-on-failure policy.
type FlowControl string

const (
	FlowControlDefault  FlowControl = ""
	FlowControlContinue FlowControl = "continue"
	FlowControlStop     FlowControl = "stop"
)

// Result is what a handler returns for one step invocation.
type Result struct {
	OK          bool           `json:"ok"`
	Status      int            `json:"status,omitempty"`
	Headers     map[string]any `json:"headers,omitempty"`
	Body        any            `json:"body,omitempty"`
	FlowControl FlowControl    `json:"flowControl,omitempty"`
}

// ToMap returns the response shape stored in the history ledger and used as
// the root for save_from_response paths (body.id, status, headers.Location).
// Typed bodies and headers are normalized to plain maps and slices.
func (r Result) ToMap() map[string]any {
	m := map[string]any{
		"ok":   r.OK,
		"body": template.Normalize(r.Body),
	}
	if r.Status != 0 {
		m["status"] = r.Status
	}
	if r.Headers != nil {
		m["headers"] = template.Normalize(r.Headers)
	}
	if r.FlowControl != FlowControlDefault {
		m["flowControl"] = string(r.FlowControl)
	}
	return m
}

// Handler performs the work of a step. ctx carries the step deadline,
// session is the Execution Context selected for the step (nil when the flow
// has none), params are the fully resolved step parameters.
type Handler interface {
	Execute(ctx context.Context, session *Session, params map[string]any, state FlowStateReader) (Result, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, session *Session, params map[string]any, state FlowStateReader) (Result, error)

func (f HandlerFunc) Execute(ctx context.Context, session *Session, params map[string]any, state FlowStateReader) (Result, error) {
	return f(ctx, session, params, state)
}
