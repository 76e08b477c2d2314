package runtime

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/go-resty/resty/v2"
)

const (
	// ContextNone is the unauthenticated Execution Context.
	ContextNone = "none"
	// ContextDefault is the authenticated context used by `auth: bearer`
	// when the flow does not name one.
	ContextDefault = "default"

	AuthNone   = "none"
	AuthBearer = "bearer"
)

// SessionConfig describes one named Execution Context.
type SessionConfig struct {
	BaseURL string            `yaml:"base_url" validate:"omitempty,url_format"`
	Auth    string            `yaml:"auth" default:"none" validate:"omitempty,oneof=none bearer"`
	Token   string            `yaml:"token"`
	Headers map[string]string `yaml:"headers"`
}

// Session is the Execution Context handed to handlers. It is created once
// per flow and shared by every step that selects it, so cookies and auth
// state persist across steps.
type Session struct {
	Name   string
	Config SessionConfig
	Client *resty.Client
}

// ClientFactory builds the resty client backing a session.
type ClientFactory func(name string, cfg SessionConfig) *resty.Client

// NewSessionClient is the ClientFactory used when none is configured.
func NewSessionClient(name string, cfg SessionConfig) *resty.Client {
	c := resty.New()
	if cfg.BaseURL != "" {
		c.SetBaseURL(cfg.BaseURL)
	}
	if len(cfg.Headers) > 0 {
		c.SetHeaders(cfg.Headers)
	}
	if cfg.Auth == AuthBearer && cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return c
}

// SelectContext picks the Execution Context name for a step. Step-level
// directives win over the flow default, which wins over ContextNone.
func SelectContext(flow *Flow, step Step) string {
	if step.Context != "" {
		return step.Context
	}

	flowDefault := ""
	if flow != nil && flow.DefaultContext != nil {
		flowDefault = flow.DefaultContext.APIContext
	}

	switch step.Auth {
	case AuthNone:
		return ContextNone
	case AuthBearer:
		if flowDefault != "" {
			return flowDefault
		}
		return ContextDefault
	}

	if flowDefault != "" {
		return flowDefault
	}
	return ContextNone
}

var errBearerNotConfigured = errors.New("auth: bearer requires a context with bearer auth")

// SessionManager opens the sessions a flow needs and releases them.
type SessionManager struct {
	l        *slog.Logger
	contexts map[string]SessionConfig
	factory  ClientFactory
}

func NewSessionManager(l *slog.Logger, contexts map[string]SessionConfig, factory ClientFactory) *SessionManager {
	if factory == nil {
		factory = NewSessionClient
	}
	if contexts == nil {
		contexts = map[string]SessionConfig{}
	}
	return &SessionManager{l: l, contexts: contexts, factory: factory}
}

// Open creates one session per context referenced by the flow's steps.
// "none" and "default" are always available, with an empty config when not
// declared. The flow's default_context.baseURL overrides the base URL of the
// flow default context and of "none". A context selected through
// `auth: bearer` must resolve to a config with bearer auth.
func (m *SessionManager) Open(flow *Flow) (map[string]*Session, error) {
	names := map[string]struct{}{}
	bearer := map[string]struct{}{}
	for _, step := range flow.Steps {
		name := SelectContext(flow, step)
		names[name] = struct{}{}
		if step.Context == "" && step.Auth == AuthBearer {
			bearer[name] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	sessions := make(map[string]*Session, len(ordered))
	for _, name := range ordered {
		cfg, ok := m.contexts[name]
		if !ok && name != ContextNone && name != ContextDefault {
			return nil, &ConfigError{Kind: ConfigInvalidContext, Name: name}
		}
		if name == ContextDefault && !ok {
			cfg = m.contexts[ContextNone]
		}
		if _, ok := bearer[name]; ok && cfg.Auth != AuthBearer {
			return nil, &ConfigError{Kind: ConfigInvalidContext, Name: name, Err: errBearerNotConfigured}
		}
		cfg = overrideBaseURL(flow, name, cfg)

		sessions[name] = &Session{
			Name:   name,
			Config: cfg,
			Client: m.factory(name, cfg),
		}
		m.l.Debug("Opened execution context", "flow", flow.ID, "context", name, "base_url", cfg.BaseURL)
	}
	return sessions, nil
}

// Close releases idle connections of every session.
func (m *SessionManager) Close(flowID string, sessions map[string]*Session) {
	for name, s := range sessions {
		if s.Client != nil {
			s.Client.GetClient().CloseIdleConnections()
		}
		m.l.Debug("Closed execution context", "flow", flowID, "context", name)
	}
}

func overrideBaseURL(flow *Flow, name string, cfg SessionConfig) SessionConfig {
	if flow.DefaultContext == nil || flow.DefaultContext.BaseURL == "" {
		return cfg
	}
	flowDefault := flow.DefaultContext.APIContext
	if flowDefault == "" {
		flowDefault = ContextDefault
	}
	if name == flowDefault || name == ContextNone {
		cfg.BaseURL = flow.DefaultContext.BaseURL
	}
	return cfg
}
