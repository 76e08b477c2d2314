package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BDNK1/flowtest/runtime/template"
)

// HistoryEntry is the ledger record of one executed step.
type HistoryEntry struct {
	Request  map[string]any `json:"request"`
	Response map[string]any `json:"response"`
}

func (h HistoryEntry) toMap() map[string]any {
	return map[string]any{
		"request":  h.Request,
		"response": h.Response,
	}
}

// FlowState holds the variable bag, the history ledger and the static step
// definition table of one flow run. It is only mutated by the orchestrator,
// one step at a time, so it carries no lock.
type FlowState struct {
	vars        map[string]any
	history     map[string]HistoryEntry
	definitions map[string]any
}

func NewFlowState() *FlowState {
	return &FlowState{
		vars:        make(map[string]any),
		history:     make(map[string]HistoryEntry),
		definitions: make(map[string]any),
	}
}

func (s *FlowState) Var(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Vars returns a shallow copy of the variable bag.
func (s *FlowState) Vars() map[string]any {
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// SetVar stores a variable. Last write wins.
func (s *FlowState) SetVar(name string, value any) {
	s.vars[name] = value
}

func (s *FlowState) History(stepID string) (HistoryEntry, bool) {
	h, ok := s.history[stepID]
	return h, ok
}

// Record appends a step to the history ledger. Entries are never replaced.
func (s *FlowState) Record(stepID string, request, response map[string]any) error {
	if _, exists := s.history[stepID]; exists {
		return fmt.Errorf("step %s already recorded", stepID)
	}
	s.history[stepID] = HistoryEntry{Request: request, Response: response}
	return nil
}

// Steps returns the ledger shaped for placeholder lookups:
// steps.<id>.request.<path> and steps.<id>.response.<path>.
func (s *FlowState) Steps() map[string]any {
	out := make(map[string]any, len(s.history))
	for id, h := range s.history {
		out[id] = h.toMap()
	}
	return out
}

// SetDefinitions installs the static step definition table, keyed by step id.
func (s *FlowState) SetDefinitions(defs map[string]any) {
	s.definitions = defs
}

func (s *FlowState) Definitions() map[string]any {
	return s.definitions
}

// ExtractAndStore copies values from source into the variable bag. rules maps
// a variable name to a path inside source. A path that does not resolve
// leaves the variable untouched and produces a warning event listing the
// top-level keys of source, plus the keys of the mapping where the lookup
// stopped.
func (s *FlowState) ExtractAndStore(origin string, source map[string]any, rules map[string]string) []TraceEvent {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	events := make([]TraceEvent, 0, len(names))
	for _, name := range names {
		path := rules[name]
		value, ok := template.Resolve(source, path)
		if !ok {
			events = append(events, NewTraceEvent(TraceExtractionMissed, LevelWarn,
				fmt.Sprintf("path %q not found in %s", path, origin),
				map[string]any{
					"variable":       name,
					"path":           path,
					"source":         origin,
					"available_keys": sortedKeys(source),
					"keys_at_stop":   keysAtStop(source, path),
				}))
			continue
		}

		s.SetVar(name, value)
		events = append(events, NewTraceEvent(TraceVariableSaved, LevelInfo,
			fmt.Sprintf("saved %s from %s", name, origin),
			map[string]any{
				"variable": name,
				"path":     path,
				"source":   origin,
				"value":    value,
			}))
	}
	return events
}

// keysAtStop returns the keys of the deepest mapping reached by path,
// falling back to the keys of source.
func keysAtStop(source map[string]any, path string) []string {
	segments := template.SplitPath(path)
	for i := len(segments) - 1; i > 0; i-- {
		escaped := make([]string, i)
		for j, seg := range segments[:i] {
			escaped[j] = strings.ReplaceAll(seg, ".", `\.`)
		}
		v, ok := template.Resolve(source, strings.Join(escaped, "."))
		if !ok {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return sortedKeys(m)
		}
		break
	}
	return sortedKeys(source)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
