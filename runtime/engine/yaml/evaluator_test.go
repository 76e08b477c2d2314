package yaml

import (
	"testing"
)

func TestBase64Functions(t *testing.T) {
	e := NewExpressionEvaluator()

	tests := []struct {
		name     string
		expr     string
		expected string
	}{
		{"encode", `base64_encode("user:password")`, "dXNlcjpwYXNzd29yZA=="},
		{"encode empty", `base64_encode("")`, ""},
		{"decode", `base64_decode("aGVsbG8=")`, "hello"},
		{"with env", `"Basic " + base64_encode(flow.apiKey + ":")`, "Basic c2tfdGVzdF8xMjM6"},
	}

	env := map[string]any{"flow": map[string]any{"apiKey": "sk_test_123"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Eval(tt.expr, env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestEval_Conditions(t *testing.T) {
	e := NewExpressionEvaluator()
	env := map[string]any{
		"flow": map[string]any{
			"count":  3,
			"userId": "u-1",
			"gone":   nil,
		},
		"response": map[string]any{
			"status": 201,
			"body":   map[string]any{"items": []any{1, 2, 3}},
		},
	}

	tests := []struct {
		name     string
		expr     string
		expected any
	}{
		{"comparison", "flow.count > 2", true},
		{"braces stripped", "{{ flow.count == 3 }}", true},
		{"string equality", `flow.userId == "u-1"`, true},
		{"len builtin", "len(response.body.items) == 3", true},
		{"status range", "response.status >= 200 && response.status < 300", true},
		{"null alias", "flow.gone == null", true},
		{"optional chaining", "flow?.missing?.deep", nil},
		{"coalescing", `flow.gone ?? "fallback"`, "fallback"},
		{"str helper", `str(flow.count) + "x"`, "3x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Eval(tt.expr, env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDefinedFunction(t *testing.T) {
	e := NewExpressionEvaluator()
	env := map[string]any{
		"flow": map[string]any{
			"exists": "hello",
			"isNil":  nil,
		},
		"steps": map[string]any{
			"login": map[string]any{"response": map[string]any{"body": map[string]any{"token": "t"}}},
		},
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"existing value is defined", `defined("flow.exists")`, true},
		{"nil value is defined", `defined("flow.isNil")`, true},
		{"missing is not defined", `defined("flow.missing")`, false},
		{"nested step path", `defined("steps.login.response.body.token")`, true},
		{"step that never ran", `defined("steps.logout")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Eval(tt.expr, env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestEval_DoesNotMutateEnv(t *testing.T) {
	e := NewExpressionEvaluator()
	env := map[string]any{"flow": map[string]any{}}

	if _, err := e.Eval("true", env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := env["null"]; ok {
		t.Error("env should not gain a null key")
	}
}

func TestEval_Errors(t *testing.T) {
	e := NewExpressionEvaluator()

	for _, expr := range []string{"", "{{ }}", "flow.count >", `defined(1)`} {
		if _, err := e.Eval(expr, map[string]any{}); err == nil {
			t.Errorf("Eval(%q) expected error", expr)
		}
	}
}
