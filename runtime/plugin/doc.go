// Package plugin is the surface handler authors program against.
//
// A plugin groups handlers under one name; each handler is registered as
// "<plugin>.<key>" and referenced from a step's `function` field:
//
//	type Greeter struct{}
//
//	func (g *Greeter) Handlers() map[string]plugin.Handler {
//		return map[string]plugin.Handler{"hello": plugin.HandlerFunc(g.hello)}
//	}
//
//	func (g *Greeter) hello(ctx context.Context, s *plugin.Session, params plugin.Params, state plugin.State) (plugin.Result, error) {
//		return plugin.Result{OK: true, Body: map[string]any{"message": "hello " + fmt.Sprint(params["name"])}}, nil
//	}
//
// The step above is called as `function: greeter.hello`.
//
// Plugins with resources implement Initializer and Shutdowner. Configuration
// structs use `yaml`, `default` and `validate` tags and are prepared with
// InitializeConfig.
package plugin
