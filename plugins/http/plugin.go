// Package http provides the http.request handler. Requests are sent through
// the resty client of the step's Execution Context, so base URL, bearer
// token and cookies carry over between the steps of a flow.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BDNK1/flowtest/runtime/plugin"
	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
)

// Config holds the HTTP plugin configuration with declarative tags
type Config struct {
	Timeout    time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	RetryCount int           `yaml:"retry_count" default:"0" validate:"gte=0,lte=10"`
	RetryWait  time.Duration `yaml:"retry_wait" default:"100ms" validate:"gte=0"`
	Debug      bool          `yaml:"debug" default:"false"`
}

// RequestInput is the typed form of http.request parameters. endpoint is
// resolved against the session base URL; url is used as is.
type RequestInput struct {
	Endpoint string         `json:"endpoint" validate:"required_without=URL"`
	URL      string         `json:"url" validate:"omitempty,url"`
	Method   string         `json:"method" validate:"oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Headers  map[string]any `json:"headers"`
	Query    map[string]any `json:"query"`
	Payload  any            `json:"payload"`
	Form     map[string]any `json:"form"`

	// FlowControl is reported with the result: "continue" lets the flow go
	// on after a non-ok response, "stop" ends it after this step.
	FlowControl string `json:"flow_control" validate:"omitempty,oneof=continue stop"`
}

type Plugin struct {
	Config Config
	l      *slog.Logger
	client *resty.Client
}

// New builds the plugin from the raw plugins.http section of the project
// config.
func New(l *slog.Logger, raw map[string]any) (*Plugin, error) {
	p := &Plugin{l: l}
	if err := plugin.InitializeConfig(&p.Config, raw); err != nil {
		return nil, fmt.Errorf("http plugin: %w", err)
	}
	return p, nil
}

func (p *Plugin) Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"request": plugin.HandlerFunc(p.Request),
	}
}

// Initialize creates the client used by steps that run without a session.
func (p *Plugin) Initialize(ctx context.Context) error {
	p.client = p.NewClient("none", plugin.SessionConfig{})
	return nil
}

func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.client != nil {
		p.client.GetClient().CloseIdleConnections()
		p.client = nil
	}
	return nil
}

// NewClient is the session ClientFactory: it applies the plugin's timeout,
// retry and debug settings on top of the context's base URL, headers and
// bearer token.
func (p *Plugin) NewClient(name string, cfg plugin.SessionConfig) *resty.Client {
	c := resty.New().
		SetTimeout(p.Config.Timeout).
		SetRetryCount(p.Config.RetryCount).
		SetRetryWaitTime(p.Config.RetryWait).
		SetDebug(p.Config.Debug)
	if cfg.BaseURL != "" {
		c.SetBaseURL(cfg.BaseURL)
	}
	if len(cfg.Headers) > 0 {
		c.SetHeaders(cfg.Headers)
	}
	if cfg.Auth == "bearer" && cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return c
}

// Request sends one HTTP request. A response with a 4xx or 5xx status is a
// result with ok=false; only transport failures are errors.
func (p *Plugin) Request(ctx context.Context, session *plugin.Session, params plugin.Params, state plugin.State) (plugin.Result, error) {
	var in RequestInput
	if err := plugin.DecodeInput(params, &in); err != nil {
		return plugin.Result{}, err
	}
	in.Method = strings.ToUpper(in.Method)
	if in.Method == "" {
		in.Method = "GET"
	}
	if err := plugin.ValidateInput(in); err != nil {
		return plugin.Result{}, fmt.Errorf("http.request: %w", err)
	}

	client := p.client
	if session != nil && session.Client != nil {
		client = session.Client
	}
	if client == nil {
		client = p.NewClient("none", plugin.SessionConfig{})
	}

	req := client.R().
		SetContext(ctx).
		SetHeaders(plugin.ToStringValueMap(in.Headers)).
		SetQueryParams(plugin.ToStringValueMap(in.Query))

	switch {
	case in.Form != nil:
		req.SetFormData(flattenToFormData(in.Form, ""))
	case in.Payload != nil:
		req.SetBody(in.Payload)
	}

	target := in.URL
	if target == "" {
		target = in.Endpoint
	}

	p.l.DebugContext(ctx, "Sending request", "method", in.Method, "target", target)
	resp, err := req.Execute(in.Method, target)
	if err != nil {
		return plugin.Result{}, plugin.NewHandlerError(fmt.Errorf("http.request %s %s: %w", in.Method, target, err)).
			WithType("transient").
			WithCode("NETWORK_ERROR").
			WithMetadata("url", target)
	}

	p.l.DebugContext(ctx, "Received response",
		"status", resp.StatusCode(),
		"duration", resp.Time())

	return plugin.Result{
		OK:          !resp.IsError(),
		Status:      resp.StatusCode(),
		Headers:     responseHeaders(resp),
		Body:        parseBody(resp.Body()),
		FlowControl: plugin.FlowControl(in.FlowControl),
	}, nil
}

// parseBody decodes a JSON body into map/slice form; any other content is
// returned as a string.
func parseBody(data []byte) any {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return string(data)
	}
	return parsed.Data()
}

func responseHeaders(resp *resty.Response) map[string]any {
	out := make(map[string]any, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		values := make([]any, len(v))
		for i, s := range v {
			values[i] = s
		}
		out[k] = values
	}
	return out
}

// flattenToFormData converts nested maps and slices to bracket notation
// (metadata[order_id], items[0][price]) as form-encoded APIs expect.
func flattenToFormData(data map[string]any, prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "[" + k + "]"
		}
		flattenValue(out, key, v)
	}
	return out
}

func flattenValue(out map[string]string, key string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, nested := range flattenToFormData(t, key) {
			out[k] = nested
		}
	case []any:
		for i, item := range t {
			flattenValue(out, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case nil:
		out[key] = ""
	default:
		out[key] = template.Stringify(t)
	}
}
