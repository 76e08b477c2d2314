// Package template resolves {{...}} placeholders inside arbitrary JSON-like
// values.
//
// A placeholder is dispatched by namespace:
//
//	{{$dynamic.uuid}}        fresh random UUID per occurrence
//	{{$dynamic.timestamp}}   current time in unix milliseconds
//	{{faker.person.email}}   fake data from the configured Faker
//	{{flow.user.id}}         anything else is a path lookup in the context
//
// A string that is exactly one placeholder is replaced by the resolved value
// with its native type. Placeholders embedded in longer text are stringified.
// Unresolved placeholders are left in place verbatim.
package template

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DynamicPrefix = "$dynamic."
	FakerPrefix   = "faker."
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	exactRe       = regexp.MustCompile(`^\{\{\s*([^{}]+?)\s*\}\}$`)
)

// Resolver substitutes placeholders. The zero value is not usable; call New.
type Resolver struct {
	faker Faker
	now   func() time.Time
}

type Option func(*Resolver)

// WithFaker replaces the fake-data generator.
func WithFaker(f Faker) Option {
	return func(r *Resolver) { r.faker = f }
}

// WithClock replaces the time source used by $dynamic.timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		faker: NewGoFakeit(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks value and substitutes every placeholder against ctx.
// It returns the resolved copy and the sorted list of placeholder
// expressions that could not be resolved.
func (r *Resolver) Resolve(value any, ctx map[string]any) (any, []string) {
	misses := make(map[string]struct{})
	resolved := r.walk(value, ctx, misses)

	if len(misses) == 0 {
		return resolved, nil
	}
	out := make([]string, 0, len(misses))
	for m := range misses {
		out = append(out, m)
	}
	sort.Strings(out)
	return resolved, out
}

// ResolveString resolves a single template string into text.
func (r *Resolver) ResolveString(s string, ctx map[string]any) (string, []string) {
	v, misses := r.Resolve(s, ctx)
	return Stringify(v), misses
}

func (r *Resolver) walk(value any, ctx map[string]any, misses map[string]struct{}) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, ctx, misses)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = r.walk(val, ctx, misses)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = r.walk(val, ctx, misses)
		}
		return out
	default:
		return value
	}
}

func (r *Resolver) resolveString(s string, ctx map[string]any, misses map[string]struct{}) any {
	if !strings.Contains(s, "{{") {
		return s
	}

	if m := exactRe.FindStringSubmatch(s); m != nil {
		if v, ok := r.lookup(m[1], ctx); ok {
			return v
		}
		misses[m[1]] = struct{}{}
		return s
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		expr := placeholderRe.FindStringSubmatch(token)[1]
		v, ok := r.lookup(expr, ctx)
		if !ok {
			misses[expr] = struct{}{}
			return token
		}
		return Stringify(v)
	})
}

func (r *Resolver) lookup(expr string, ctx map[string]any) (any, bool) {
	switch {
	case strings.HasPrefix(expr, DynamicPrefix):
		return r.dynamic(strings.TrimPrefix(expr, DynamicPrefix))
	case strings.HasPrefix(expr, FakerPrefix):
		if r.faker == nil {
			return nil, false
		}
		return r.faker.Fake(strings.TrimPrefix(expr, FakerPrefix))
	default:
		return Resolve(ctx, expr)
	}
}

func (r *Resolver) dynamic(name string) (any, bool) {
	switch name {
	case "uuid":
		return uuid.NewString(), true
	case "timestamp":
		return r.now().UnixMilli(), true
	case "isoTimestamp":
		return r.now().UTC().Format(time.RFC3339Nano), true
	case "date":
		return r.now().UTC().Format(time.DateOnly), true
	default:
		return nil, false
	}
}

// IsPlaceholder reports whether s is exactly one {{...}} placeholder.
func IsPlaceholder(s string) bool {
	return exactRe.MatchString(s)
}
