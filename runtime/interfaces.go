package runtime

import "context"

// Plugin groups related handlers under one name. Each key of Handlers is
// registered as "<plugin name>.<key>".
type Plugin interface {
	Handlers() map[string]Handler
}

// Initializer allows plugins to perform startup initialization.
// Initialize is called once by Container.Initialize, after the plugin's
// config has been applied.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner allows plugins to release resources at the end of a run.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
