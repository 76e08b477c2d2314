package runtime

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type lifecyclePlugin struct {
	name    string
	log     *[]string
	initErr error
	stopErr error
}

func (p *lifecyclePlugin) Handlers() map[string]Handler {
	return map[string]Handler{
		"ping": HandlerFunc(func(ctx context.Context, _ *Session, _ map[string]any, _ FlowStateReader) (Result, error) {
			return Result{OK: true, Body: p.name}, nil
		}),
	}
}

func (p *lifecyclePlugin) Initialize(ctx context.Context) error {
	*p.log = append(*p.log, "init "+p.name)
	return p.initErr
}

func (p *lifecyclePlugin) Shutdown(ctx context.Context) error {
	*p.log = append(*p.log, "stop "+p.name)
	return p.stopErr
}

func TestContainer_RegisterAndGet(t *testing.T) {
	c := NewContainer()
	c.Register("core.set", HandlerFunc(func(ctx context.Context, _ *Session, params map[string]any, _ FlowStateReader) (Result, error) {
		return Result{OK: true, Body: params}, nil
	}))

	if !c.Has("core.set") {
		t.Fatal("Has(core.set) = false")
	}
	h, err := c.Get("core.set")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	res, _ := h.Execute(context.Background(), nil, map[string]any{"a": 1}, nil)
	if !res.OK {
		t.Error("handler not invoked")
	}

	_, err = c.Get("core.nope")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Kind != ConfigUnknownFunction || ce.Name != "core.nope" {
		t.Errorf("Get unknown = %v", err)
	}
}

func TestContainer_RegisterPlugin(t *testing.T) {
	var log []string
	c := NewContainer()
	if err := c.RegisterPlugin("alpha", &lifecyclePlugin{name: "alpha", log: &log}); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterPlugin("beta", &lifecyclePlugin{name: "beta", log: &log}); err != nil {
		t.Fatal(err)
	}

	if got := c.Names(); !reflect.DeepEqual(got, []string{"alpha.ping", "beta.ping"}) {
		t.Errorf("Names = %v", got)
	}
	if _, ok := c.Plugin("beta"); !ok {
		t.Error("Plugin(beta) not found")
	}

	if err := c.RegisterPlugin("alpha", &lifecyclePlugin{name: "again", log: &log}); err == nil {
		t.Error("duplicate plugin registration should fail")
	}
	if err := c.RegisterPlugin("nil", nil); err == nil {
		t.Error("nil plugin should fail")
	}

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"init alpha", "init beta", "stop beta", "stop alpha"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("lifecycle order = %v, want %v", log, want)
	}
}

func TestContainer_LifecycleErrors(t *testing.T) {
	var log []string
	c := NewContainer()
	_ = c.RegisterPlugin("a", &lifecyclePlugin{name: "a", log: &log, initErr: errors.New("no db"), stopErr: errors.New("a busy")})
	_ = c.RegisterPlugin("b", &lifecyclePlugin{name: "b", log: &log, stopErr: errors.New("b busy")})

	err := c.Initialize(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no db") {
		t.Errorf("Initialize = %v", err)
	}
	if len(log) != 1 {
		t.Errorf("initialization should stop at the first failure, log = %v", log)
	}

	err = c.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "a busy") || !strings.Contains(err.Error(), "b busy") {
		t.Errorf("Shutdown should join every failure, got %v", err)
	}
}
