package runtime

import (
	"context"
	"errors"
	"fmt"
)

// FlowErrorType classifies a step failure.
type FlowErrorType string

const (
	// ErrorTypeTransient signals a failure that may succeed on a later run.
	ErrorTypeTransient FlowErrorType = "transient"
	// ErrorTypePermanent signals a failure that will not go away by itself.
	ErrorTypePermanent FlowErrorType = "permanent"
	// ErrorTypeTimeout signals the step was cancelled by its deadline.
	ErrorTypeTimeout FlowErrorType = "timeout"
)

// FlowErrorCode identifies framework error codes. Handlers may attach their
// own codes through HandlerError metadata.
type FlowErrorCode string

const (
	ErrorCodeHandler          FlowErrorCode = "HANDLER_ERROR"
	ErrorCodeHandlerPanic     FlowErrorCode = "HANDLER_PANIC"
	ErrorCodeDeadlineExceeded FlowErrorCode = "DEADLINE_EXCEEDED"
	ErrorCodeContextCancelled FlowErrorCode = "CONTEXT_CANCELLED"
	ErrorCodeOutcomeMismatch  FlowErrorCode = "OUTCOME_MISMATCH"
	ErrorCodeConfig           FlowErrorCode = "CONFIG_ERROR"
	ErrorCodeCondition        FlowErrorCode = "CONDITION_ERROR"
)

// FlowError is the error attached to a failed step or flow in the report.
type FlowError struct {
	Type    FlowErrorType  `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Step    string         `json:"step,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (e *FlowError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("[%s/%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s/%s] %s (step: %s)", e.Type, e.Code, e.Message, e.Step)
}

func NewFlowError(typ FlowErrorType, code FlowErrorCode, step, message string) *FlowError {
	return &FlowError{Type: typ, Code: string(code), Message: message, Step: step}
}

// ClassifyError converts any error surfaced while running a step into a
// FlowError.
func ClassifyError(step string, err error) *FlowError {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}

	var ce *ConfigError
	if errors.As(err, &ce) {
		return NewFlowError(ErrorTypePermanent, ErrorCodeConfig, step, err.Error())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFlowError(ErrorTypeTimeout, ErrorCodeDeadlineExceeded, step, err.Error())
	case errors.Is(err, context.Canceled):
		return NewFlowError(ErrorTypeTimeout, ErrorCodeContextCancelled, step, err.Error())
	}

	out := NewFlowError(ErrorTypePermanent, ErrorCodeHandler, step, err.Error())
	var he *HandlerError
	if errors.As(err, &he) {
		if t := he.GetType(); t != "" {
			out.Type = FlowErrorType(t)
		}
		if code := he.GetCode(); code != "" {
			out.Code = code
		}
		if len(he.Metadata) > 0 {
			out.Meta = he.Metadata
		}
	}
	return out
}

// ConfigErrorKind names the category of a configuration error.
type ConfigErrorKind string

const (
	ConfigMissingFile     ConfigErrorKind = "missing_file"
	ConfigUnknownFunction ConfigErrorKind = "unknown_function"
	ConfigMalformedFlow   ConfigErrorKind = "malformed_flow"
	ConfigInvalidContext  ConfigErrorKind = "invalid_context"
	ConfigParse           ConfigErrorKind = "parse"
)

// ConfigError is fatal: it is raised before a flow starts or at the step
// that references the offending file or name.
type ConfigError struct {
	Kind ConfigErrorKind
	Path string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	var msg string
	switch e.Kind {
	case ConfigMissingFile:
		msg = fmt.Sprintf("file not found: %s", e.Path)
	case ConfigUnknownFunction:
		msg = fmt.Sprintf("function %q is not registered", e.Name)
	case ConfigInvalidContext:
		msg = fmt.Sprintf("execution context %q is not configured", e.Name)
	case ConfigMalformedFlow:
		msg = "malformed flow"
		if e.Path != "" {
			msg += " " + e.Path
		}
	default:
		msg = "cannot parse"
		if e.Path != "" {
			msg += " " + e.Path
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
