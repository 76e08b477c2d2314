package runtime

// FlowLoader loads flow definitions from files.
type FlowLoader interface {
	Extensions() []string
	Load(filePath string) (Flow, error)
}

// ExpressionEvaluator evaluates restricted boolean expressions used by step
// conditions and expected.assert entries.
type ExpressionEvaluator interface {
	Eval(expression string, env map[string]any) (any, error)
}

// StepExecutor runs a single step against the flow state carried by the
// execution. The execution's embedded context carries the step deadline.
type StepExecutor interface {
	// Prepare is called once per flow run, before the first step.
	Prepare(execution *Execution)
	ExecuteStep(execution *Execution, step Step) *StepReport
}

// FlowStateReader is the read-only view of flow state given to handlers.
type FlowStateReader interface {
	Var(name string) (any, bool)
	Vars() map[string]any
	History(stepID string) (HistoryEntry, bool)
}
