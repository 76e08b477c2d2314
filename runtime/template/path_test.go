package template

import (
	"reflect"
	"testing"
)

func TestResolve_NestedKeys(t *testing.T) {
	root := map[string]any{
		"user": map[string]any{
			"profile": map[string]any{
				"name": "Ada",
				"age":  36,
			},
			"tags": []any{"a", "b"},
		},
	}

	tests := []struct {
		name string
		path string
		want any
	}{
		{"leaf string", "user.profile.name", "Ada"},
		{"leaf number", "user.profile.age", 36},
		{"intermediate map", "user.profile", root["user"].(map[string]any)["profile"]},
		{"array", "user.tags", []any{"a", "b"}},
		{"array index", "user.tags[1]", "b"},
		{"numeric segment", "user.tags.0", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(root, tt.path)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tt.path)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve_EscapedDots(t *testing.T) {
	root := map[string]any{
		"a.b": map[string]any{"c": 1},
	}

	got, ok := Resolve(root, `a\.b.c`)
	if !ok || got != 1 {
		t.Errorf(`Resolve("a\.b.c") = %v, %v; want 1, true`, got, ok)
	}

	if _, ok := Resolve(root, "a.b.c"); ok {
		t.Error(`Resolve("a.b.c") should not be found`)
	}
}

func TestResolve_ArrayQuery(t *testing.T) {
	root := map[string]any{
		"items": []any{
			map[string]any{"type": "x", "v": 1},
			map[string]any{"type": "y", "v": 2},
			map[string]any{"id": 7, "v": 3},
		},
	}

	got, ok := Resolve(root, "items[type=y].v")
	if !ok || got != 2 {
		t.Errorf("items[type=y].v = %v, %v; want 2, true", got, ok)
	}

	if _, ok := Resolve(root, "items[type=z].v"); ok {
		t.Error("items[type=z].v should not be found")
	}

	// numeric field compared as string
	got, ok = Resolve(root, "items[id=7].v")
	if !ok || got != 3 {
		t.Errorf("items[id=7].v = %v, %v; want 3, true", got, ok)
	}

	// query result without trailing path is the element itself
	got, ok = Resolve(root, "items[type=x]")
	if !ok {
		t.Fatal("items[type=x] not found")
	}
	if m, _ := got.(map[string]any); m["v"] != 1 {
		t.Errorf("items[type=x] = %v, want element with v=1", got)
	}
}

func TestResolve_ArrayQueryOnNonSequence(t *testing.T) {
	root := map[string]any{"items": map[string]any{"type": "y"}}
	if _, ok := Resolve(root, "items[type=y]"); ok {
		t.Error("query on a mapping should not be found")
	}
}

func TestResolve_NullDistinctFromMissing(t *testing.T) {
	root := map[string]any{
		"present": nil,
		"off":     false,
	}

	v, ok := Resolve(root, "present")
	if !ok || v != nil {
		t.Errorf("present = %v, %v; want nil, true", v, ok)
	}

	v, ok = Resolve(root, "off")
	if !ok || v != false {
		t.Errorf("off = %v, %v; want false, true", v, ok)
	}

	if _, ok := Resolve(root, "absent"); ok {
		t.Error("absent should not be found")
	}

	if _, ok := Resolve(root, "present.deeper"); ok {
		t.Error("path through nil should not be found")
	}
}

func TestResolve_ScalarRoot(t *testing.T) {
	for _, root := range []any{"text", 42, true, nil} {
		if _, ok := Resolve(root, "a"); ok {
			t.Errorf("Resolve(%v) should not be found for scalar root", root)
		}
	}
}

func TestResolve_RoundTripOnOwnKeys(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "deep"},
			"d": []any{map[string]any{"e": 5.5}},
		},
		"f": "top",
	}

	paths := map[string]any{
		"a.b.c":   "deep",
		"a.d.0.e": 5.5,
		"f":       "top",
	}
	for path, want := range paths {
		got, ok := Resolve(root, path)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve(%q) = %v, %v; want %v", path, got, ok, want)
		}
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a.b.c", []string{"a", "b", "c"}},
		{`a\.b.c`, []string{"a.b", "c"}},
		{`x.y\.z\.w`, []string{"x", "y.z.w"}},
		{"single", []string{"single"}},
		{`items[name=a\.b].id`, []string{"items[name=a.b]", "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := SplitPath(tt.path)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
