package plugin

import "github.com/BDNK1/flowtest/runtime"

// Params are the resolved parameters of one step.
type Params = map[string]any

type Handler = runtime.Handler

type HandlerFunc = runtime.HandlerFunc

type Result = runtime.Result

type Session = runtime.Session

type SessionConfig = runtime.SessionConfig

type State = runtime.FlowStateReader

type HandlerError = runtime.HandlerError

type FlowControl = runtime.FlowControl

const (
	Continue = runtime.FlowControlContinue
	Stop     = runtime.FlowControlStop
)

// NewHandlerError wraps err so metadata can be attached to it.
func NewHandlerError(err error) *HandlerError {
	return runtime.NewHandlerError(err)
}

// DecodeInput decodes params into a typed input struct using json tags.
func DecodeInput(params Params, target any) error {
	return runtime.DecodeInput(params, target)
}

// ValidateInput runs the validate tags of a decoded input struct.
func ValidateInput(input any) error {
	return runtime.ValidateStruct(input)
}

// ToStringValueMap renders header and query maps as strings.
func ToStringValueMap(m map[string]any) map[string]string {
	return runtime.ToStringValueMap(m)
}

// InitializeConfig applies defaults, raw values and validation to config.
func InitializeConfig(config any, raw map[string]any) error {
	return runtime.InitializeConfig(config, raw)
}
