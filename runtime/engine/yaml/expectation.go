package yaml

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/template"
)

// Expectation is the declared outcome of a step.
//
//	expected:
//	  status: 201
//	  body:
//	    id: "{{flow.userId}}"
//	    items[sku=A1].qty: 2
//	  assert:
//	    - len(response.body.items) > 0
type Expectation struct {
	Status *int
	Body   map[string]any
	Assert []string
}

// ParseExpectation reads an expected block. Unknown top-level keys are
// treated as body matchers, so an expected file may hold the body fields
// directly next to status.
func ParseExpectation(raw any) (*Expectation, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected must be a mapping, got %T", raw)
	}

	exp := &Expectation{Body: map[string]any{}}
	for key, v := range m {
		switch key {
		case "status":
			status, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("expected.status: %w", err)
			}
			exp.Status = &status
		case "body":
			body, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected.body must be a mapping of path to value, got %T", v)
			}
			merge(exp.Body, body)
		case "assert":
			asserts, err := toStrings(v)
			if err != nil {
				return nil, fmt.Errorf("expected.assert: %w", err)
			}
			exp.Assert = asserts
		default:
			exp.Body[key] = v
		}
	}
	return exp, nil
}

// Evaluate returns one message per unmet expectation. Without an explicit
// status the handler's ok flag must be true.
func (x *Expectation) Evaluate(result runtime.Result, env map[string]any, eval runtime.ExpressionEvaluator) []string {
	var mismatches []string

	if x == nil || x.Status == nil {
		if !result.OK {
			mismatches = append(mismatches, "handler reported failure (ok=false)")
		}
	} else if result.Status != *x.Status {
		mismatches = append(mismatches, fmt.Sprintf("status: expected %d, got %d", *x.Status, result.Status))
	}

	if x == nil {
		return mismatches
	}

	paths := make([]string, 0, len(x.Body))
	for p := range x.Body {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	body := template.Normalize(result.Body)
	for _, p := range paths {
		want := x.Body[p]
		got, ok := template.Resolve(body, p)
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("body.%s: not found", p))
			continue
		}
		if template.Stringify(got) != template.Stringify(want) {
			mismatches = append(mismatches, fmt.Sprintf("body.%s: expected %s, got %s",
				p, template.Stringify(want), template.Stringify(got)))
		}
	}

	for _, a := range x.Assert {
		v, err := eval.Eval(a, env)
		if err != nil {
			mismatches = append(mismatches, fmt.Sprintf("assert %q: %v", a, err))
			continue
		}
		if b, ok := v.(bool); !ok || !b {
			mismatches = append(mismatches, fmt.Sprintf("assert failed: %s", a))
		}
	}

	return mismatches
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or a list of strings, got %T", v)
	}
}
