package runtime

// HandlerError wraps a handler failure with metadata that ends up in the
// step report, for example:
//
//	return runtime.Result{}, runtime.NewHandlerError(err).
//		WithType("transient").
//		WithMetadata("status_code", 503)
type HandlerError struct {
	Err      error
	Metadata map[string]any
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "handler failed"
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

func NewHandlerError(err error) *HandlerError {
	return &HandlerError{
		Err:      err,
		Metadata: make(map[string]any),
	}
}

func (e *HandlerError) WithMetadata(key string, value any) *HandlerError {
	e.Metadata[key] = value
	return e
}

func (e *HandlerError) WithMetadataMap(metadata map[string]any) *HandlerError {
	for k, v := range metadata {
		e.Metadata[k] = v
	}
	return e
}

// WithType sets the error type ("transient", "permanent", "timeout").
func (e *HandlerError) WithType(errorType string) *HandlerError {
	e.Metadata["type"] = errorType
	return e
}

// WithCode sets a handler-specific error code shown in the report.
func (e *HandlerError) WithCode(code string) *HandlerError {
	e.Metadata["code"] = code
	return e
}

func (e *HandlerError) GetType() string {
	return e.stringMeta("type")
}

func (e *HandlerError) GetCode() string {
	return e.stringMeta("code")
}

func (e *HandlerError) stringMeta(key string) string {
	if val, ok := e.Metadata[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
