package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Container is the function registry. Handlers are registered explicitly,
// either one by one or through a Plugin.
type Container struct {
	handlers     map[string]Handler
	plugins      map[string]Plugin
	initializers []Initializer
	shutdowners  []Shutdowner
}

func NewContainer() *Container {
	return &Container{
		handlers: make(map[string]Handler),
		plugins:  make(map[string]Plugin),
	}
}

// Register adds a handler under name, replacing any previous one.
func (c *Container) Register(name string, handler Handler) {
	c.handlers[name] = handler
}

// Get returns the handler registered under name or a ConfigError.
func (c *Container) Get(name string) (Handler, error) {
	h, ok := c.handlers[name]
	if !ok {
		return nil, &ConfigError{Kind: ConfigUnknownFunction, Name: name}
	}
	return h, nil
}

func (c *Container) Has(name string) bool {
	_, ok := c.handlers[name]
	return ok
}

// Names returns the registered handler names in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterPlugin registers every handler of p as "<name>.<key>" and records
// the plugin's lifecycle hooks.
func (c *Container) RegisterPlugin(name string, p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin %s cannot be nil", name)
	}
	if _, exists := c.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	c.plugins[name] = p

	for key, h := range p.Handlers() {
		c.Register(name+"."+key, h)
	}

	if i, ok := p.(Initializer); ok {
		c.initializers = append(c.initializers, i)
	}
	if s, ok := p.(Shutdowner); ok {
		c.shutdowners = append(c.shutdowners, s)
	}
	return nil
}

// Plugin returns a registered plugin instance by name.
func (c *Container) Plugin(name string) (Plugin, bool) {
	p, ok := c.plugins[name]
	return p, ok
}

// Initialize initializes plugins in registration order and stops at the
// first failure.
func (c *Container) Initialize(ctx context.Context) error {
	for i, p := range c.initializers {
		if err := p.Initialize(ctx); err != nil {
			return fmt.Errorf("plugin #%d initialization failed: %w", i, err)
		}
	}
	return nil
}

// Shutdown shuts plugins down in reverse order and joins the errors.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(c.shutdowners) - 1; i >= 0; i-- {
		if err := c.shutdowners[i].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin #%d shutdown failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
