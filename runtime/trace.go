package runtime

import (
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// TraceKind identifies a per-step observable event.
type TraceKind string

const (
	TraceResolvedParameters TraceKind = "resolved_parameters"
	TracePlaceholderMissing TraceKind = "placeholder_unresolved"
	TraceVariableSaved      TraceKind = "variable_saved"
	TraceExtractionMissed   TraceKind = "extraction_missed"
	TraceOutcome            TraceKind = "outcome"
	TraceHandlerError       TraceKind = "handler_error"
	TraceArtifactSaved      TraceKind = "artifact_saved"
	TraceConditionFalse     TraceKind = "condition_not_met"
)

const (
	LevelInfo = "info"
	LevelWarn = "warn"
)

// TraceEvent is attached to a step report and mirrored as a span event.
type TraceEvent struct {
	Kind    TraceKind      `json:"kind"`
	Level   string         `json:"level"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	Time    time.Time      `json:"time"`
}

func NewTraceEvent(kind TraceKind, level, message string, fields map[string]any) TraceEvent {
	return TraceEvent{
		Kind:    kind,
		Level:   level,
		Message: message,
		Fields:  fields,
		Time:    time.Now(),
	}
}

// Attributes renders the event fields as span attributes. Non-string values
// are JSON encoded.
func (e TraceEvent) Attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(e.Fields)+2)
	attrs = append(attrs, attribute.String("level", e.Level))
	if e.Message != "" {
		attrs = append(attrs, attribute.String("message", e.Message))
	}
	for k, v := range e.Fields {
		switch t := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, t))
		case bool:
			attrs = append(attrs, attribute.Bool(k, t))
		case int:
			attrs = append(attrs, attribute.Int(k, t))
		case int64:
			attrs = append(attrs, attribute.Int64(k, t))
		case float64:
			attrs = append(attrs, attribute.Float64(k, t))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, t))
		default:
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			attrs = append(attrs, attribute.String(k, string(b)))
		}
	}
	return attrs
}
