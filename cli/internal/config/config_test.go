package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

// unsetAfter removes variables loaded from .env files once the test ends.
func unsetAfter(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Cleanup(func() { os.Unsetenv(name) })
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/work/checkout-tests", "")
	require.NoError(t, err)

	assert.Equal(t, "checkout-tests", cfg.Name)
	assert.Equal(t, "flows", cfg.FlowsDir)
	assert.Equal(t, "reports", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/work/checkout-tests/flows", cfg.Path(cfg.FlowsDir))
	assert.Equal(t, "/abs/out", cfg.Path("/abs/out"))
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("FLOWTEST_ADMIN_TOKEN", "from-process")
	unsetAfter(t, "FLOWTEST_HOST", "FLOWTEST_DSN")

	fs := writeProject(t, map[string]string{
		"/proj/flowtest.yaml": `
name: shop
flows_dir: specs
step_timeout: 5s
parallel: 4
base_url: https://${FLOWTEST_HOST}
contexts:
  admin:
    auth: bearer
    token: ${FLOWTEST_ADMIN_TOKEN}
    headers:
      X-Tenant: acme
  partner:
    base_url: https://partner.example.com
plugins:
  http:
    timeout: 10s
  sql:
    driver: sqlite3
    dsn: ${FLOWTEST_DSN::memory:}
`,
		"/proj/.env": "FLOWTEST_HOST=api.example.com\nFLOWTEST_ADMIN_TOKEN=from-file\n",
	})

	cfg, err := Load(fs, "/proj", "")
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Name)
	assert.Equal(t, "specs", cfg.FlowsDir)
	assert.Equal(t, 5*time.Second, cfg.StepTimeout)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)

	admin := cfg.Contexts["admin"]
	assert.Equal(t, runtime.AuthBearer, admin.Auth)
	assert.Equal(t, "from-process", admin.Token, "process environment wins over .env")
	assert.Equal(t, "acme", admin.Headers["X-Tenant"])

	assert.Equal(t, "10s", cfg.Plugins.HTTP["timeout"])
	assert.Equal(t, ":memory:", cfg.Plugins.SQL["dsn"])

	contexts := cfg.SessionContexts()
	assert.Equal(t, "https://api.example.com", contexts["admin"].BaseURL)
	assert.Equal(t, "https://partner.example.com", contexts["partner"].BaseURL)
	assert.Equal(t, "https://api.example.com", contexts[runtime.ContextNone].BaseURL)
}

func TestLoad_EnvironmentFileWins(t *testing.T) {
	unsetAfter(t, "FLOWTEST_STAGE_URL")

	fs := writeProject(t, map[string]string{
		"/proj/flowtest.yaml": "base_url: ${FLOWTEST_STAGE_URL}\n",
		"/proj/.env":          "FLOWTEST_STAGE_URL=http://local.test\n",
		"/proj/.env.staging":  "FLOWTEST_STAGE_URL=https://staging.test\n",
	})

	cfg, err := Load(fs, "/proj", "staging")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.test", cfg.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing required variable", "base_url: ${FLOWTEST_SURELY_UNSET}\n", "FLOWTEST_SURELY_UNSET"},
		{"invalid yaml", "name: [unclosed\n", "cannot parse"},
		{"invalid base url", "base_url: not-a-url\n", "BaseURL"},
		{"invalid parallel", "parallel: 0\n", "Parallel"},
		{"invalid context auth", "contexts:\n  x:\n    auth: basic\n", "Auth"},
		{"env file outside project", "env_files: [../secrets.env]\n", "path traversal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := writeProject(t, map[string]string{"/proj/flowtest.yaml": tt.content})
			_, err := Load(fs, "/proj", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ParseErrorIsConfigError(t *testing.T) {
	fs := writeProject(t, map[string]string{"/proj/flowtest.yaml": "parallel: [1\n"})
	_, err := Load(fs, "/proj", "")

	var ce *runtime.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, runtime.ConfigParse, ce.Kind)
	assert.Equal(t, "/proj/flowtest.yaml", ce.Path)
}
