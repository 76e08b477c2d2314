package yaml

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/expr-lang/expr"
)

// Custom expression functions available in conditions and asserts.
var exprFunctions = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}),
	expr.Function("str", func(params ...any) (any, error) {
		return template.Stringify(params[0]), nil
	}),
}

// ExpressionEvaluator evaluates expressions with expr-lang. Expressions only
// see the supplied env and the functions above; there is no access to the
// host process.
type ExpressionEvaluator struct{}

func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

func (e *ExpressionEvaluator) Eval(expression string, env map[string]any) (any, error) {
	expression = unwrap(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	vars := make(map[string]any, len(env)+1)
	for k, v := range env {
		vars[k] = v
	}
	// null is an alias for nil (JSON/YAML compatibility)
	vars["null"] = nil

	// defined("flow.userId") reports whether the path exists, even if its
	// value is null.
	definedFn := expr.Function(
		"defined",
		func(params ...any) (any, error) {
			path, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects string path argument, got %T", params[0])
			}
			_, exists := template.Resolve(env, path)
			return exists, nil
		},
		new(func(string) bool),
	)

	// NOTE: expr.Env MUST come before AllowUndefinedVariables for it to work
	opts := []expr.Option{
		expr.Env(vars),
		expr.AllowUndefinedVariables(),
		definedFn,
	}
	opts = append(opts, exprFunctions...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, vars)
}

// unwrap strips one surrounding {{ }} so conditions may be written either
// as `flow.count > 1` or `{{ flow.count > 1 }}`.
func unwrap(expression string) string {
	s := strings.TrimSpace(expression)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	return s
}
