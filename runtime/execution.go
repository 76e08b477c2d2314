package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Execution is one run of one flow. It implements context.Context so it can
// be passed straight to handlers and loggers; the embedded ctx carries the
// step deadline while the flow state is shared by every step.
type Execution struct {
	ID        string
	Flow      *Flow
	Container *Container
	State     *FlowState
	Sessions  map[string]*Session
	ctx       context.Context
}

func NewExecution(ctx context.Context, flow *Flow, container *Container) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		ID:        uuid.New().String(),
		Flow:      flow,
		Container: container,
		State:     NewFlowState(),
		Sessions:  map[string]*Session{},
		ctx:       ctx,
	}
}

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

// Value answers from the embedded context first. String keys it does not
// know fall back to the variable bag.
func (e *Execution) Value(key any) any {
	if v := e.ctx.Value(key); v != nil {
		return v
	}
	k, ok := key.(string)
	if !ok {
		return nil
	}
	v, _ := e.State.Var(k)
	return v
}

// WithContext returns a shallow copy of the Execution with a new embedded
// context. Use this to apply a per-step timeout without mutating the parent.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	c := *e
	c.ctx = ctx
	return &c
}

// SessionFor returns the Execution Context selected for step.
func (e *Execution) SessionFor(step Step) *Session {
	return e.Sessions[SelectContext(e.Flow, step)]
}

// TemplateContext assembles the lookup root for placeholders:
// flow, steps, testData and definitions.
func (e *Execution) TemplateContext(testData any) map[string]any {
	ctx := map[string]any{
		"flow":        e.State.Vars(),
		"steps":       e.State.Steps(),
		"definitions": e.State.Definitions(),
	}
	if testData != nil {
		ctx["testData"] = testData
	}
	return ctx
}
