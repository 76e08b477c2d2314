package runtime

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/spf13/afero"
)

// App holds the loaded flows of a project and the function registry they
// run against.
type App struct {
	Container *Container
	Flows     map[string]*Flow
}

// NewApp loads every flow file in flowsDir matching the loader's extensions.
// Flow ids must be unique across files.
func NewApp(fs afero.Fs, loader FlowLoader, flowsDir string, container *Container) (*App, error) {
	var files []string
	for _, ext := range loader.Extensions() {
		matches, err := afero.Glob(fs, filepath.Join(flowsDir, ext))
		if err != nil {
			return nil, fmt.Errorf("error reading directory: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	app := &App{
		Container: container,
		Flows:     make(map[string]*Flow),
	}

	for _, file := range files {
		flow, err := loader.Load(file)
		if err != nil {
			return nil, err
		}
		if err := app.RegisterFlow(flow); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *App) RegisterFlow(flow Flow) error {
	if existing, ok := a.Flows[flow.ID]; ok {
		return &ConfigError{
			Kind: ConfigMalformedFlow,
			Path: flow.SourcePath,
			Err:  fmt.Errorf("flow_id %q already defined in %s", flow.ID, existing.SourcePath),
		}
	}
	a.Flows[flow.ID] = &flow
	return nil
}

func (a *App) Flow(id string) (*Flow, bool) {
	f, ok := a.Flows[id]
	return f, ok
}

// FlowIDs returns the ids of all loaded flows in sorted order.
func (a *App) FlowIDs() []string {
	ids := make([]string, 0, len(a.Flows))
	for id := range a.Flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select returns the flows matching ids (all when empty) that carry at least
// one of tags (any when empty) and none of excludeTags.
func (a *App) Select(ids, tags, excludeTags []string) ([]*Flow, error) {
	if len(ids) == 0 {
		ids = a.FlowIDs()
	}

	var out []*Flow
	for _, id := range ids {
		f, ok := a.Flows[id]
		if !ok {
			return nil, fmt.Errorf("flow %q not found", id)
		}
		if len(tags) > 0 && !hasAnyTag(f.Tags, tags) {
			continue
		}
		if hasAnyTag(f.Tags, excludeTags) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, t := range want {
		if slices.Contains(have, t) {
			return true
		}
	}
	return false
}
