package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAPI(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()

	g.POST("/login", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil || body["user"] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": body["user"], "session": "s-1"})
	})
	g.GET("/me", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer secret-token" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": 7, "name": "Ada"})
	})

	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return srv
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const loginFlow = `flow_id: login
tags: [smoke]
steps:
  - step_id: post_login
    function: http.request
    parameters:
      method: POST
      endpoint: /login
      payload:
        user: ada
    save_from_response:
      session: body.session
`

const profileFlow = `flow_id: profile
depends_on: login
steps:
  - step_id: get_me
    function: http.request
    auth: bearer
    parameters:
      endpoint: /me
    expected:
      status: 200
      body:
        name: Ada
`

func projectConfig(baseURL string) string {
	return `name: demo
base_url: ` + baseURL + `
contexts:
  default:
    auth: bearer
    token: ${FLOWTEST_CMD_TOKEN:secret-token}
`
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func readReport(t *testing.T, path string) runtime.RunReport {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report runtime.RunReport
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}

func TestRunCommand_Passes(t *testing.T) {
	srv := newMockAPI(t)
	dir := writeProject(t, map[string]string{
		"flowtest.yaml":      projectConfig(srv.URL),
		"flows/login.yaml":   loginFlow,
		"flows/profile.yaml": profileFlow,
	})

	out, err := execute(t, "run", "-p", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 passed")

	report := readReport(t, filepath.Join(dir, "reports", "report.json"))
	require.Len(t, report.Flows, 2)
	assert.Equal(t, "login", report.Flows[0].FlowID)
	assert.Equal(t, runtime.FlowPassed, report.Flows[0].Status)
	assert.Equal(t, runtime.FlowPassed, report.Flows[1].Status)
	assert.Equal(t, "default", report.Flows[1].Steps[0].Context)
}

func TestRunCommand_SelectPullsInDependencies(t *testing.T) {
	srv := newMockAPI(t)
	dir := writeProject(t, map[string]string{
		"flowtest.yaml":      projectConfig(srv.URL),
		"flows/login.yaml":   loginFlow,
		"flows/profile.yaml": profileFlow,
	})
	reportDir := filepath.Join(dir, "out")

	_, err := execute(t, "run", "profile", "-p", dir, "--report-dir", reportDir)
	require.NoError(t, err)

	report := readReport(t, filepath.Join(reportDir, "report.json"))
	assert.Equal(t, 2, report.Summary.Flows)
}

const wrongTokenContexts = `contexts:
  default:
    auth: bearer
    token: wrong
`

const accountFlow = `flow_id: account
depends_on: profile
steps:
  - step_id: noop
    function: core.set
    parameters:
      x: 1
`

func TestRunCommand_FailureSkipsDependents(t *testing.T) {
	srv := newMockAPI(t)
	dir := writeProject(t, map[string]string{
		"flowtest.yaml":      "base_url: " + srv.URL + "\n" + wrongTokenContexts,
		"flows/login.yaml":   loginFlow,
		"flows/profile.yaml": profileFlow,
		"flows/account.yaml": accountFlow,
	})

	out, err := execute(t, "run", "-p", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 flows did not pass")
	assert.Contains(t, out, "dependency profile did not pass")

	report := readReport(t, filepath.Join(dir, "reports", "report.json"))
	statuses := map[string]runtime.FlowStatus{}
	for _, f := range report.Flows {
		statuses[f.FlowID] = f.Status
	}
	assert.Equal(t, runtime.FlowPassed, statuses["login"])
	assert.Equal(t, runtime.FlowFailed, statuses["profile"])
	assert.Equal(t, runtime.FlowSkipped, statuses["account"])
}

func TestRunCommand_NoFlowsSelected(t *testing.T) {
	dir := writeProject(t, map[string]string{"flows/login.yaml": loginFlow})

	_, err := execute(t, "run", "-p", dir, "--tags", "nightly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no flows selected")
}

func TestListCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"flows/login.yaml":   loginFlow,
		"flows/profile.yaml": profileFlow,
	})

	out, err := execute(t, "list", "-p", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "after login")

	out, err = execute(t, "list", "-p", dir, "--tags", "smoke")
	require.NoError(t, err)
	assert.Contains(t, out, "login")
	assert.NotContains(t, out, "profile")
}

const unknownFunctionFlow = `flow_id: bad
steps:
  - step_id: one
    function: grpc.call
`

const (
	cycleFlowA = "flow_id: a\ndepends_on: b\nsteps:\n  - {step_id: s, function: core.set}\n"
	cycleFlowB = "flow_id: b\ndepends_on: a\nsteps:\n  - {step_id: s, function: core.set}\n"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:  "valid",
			files: map[string]string{"flows/login.yaml": loginFlow, "flows/profile.yaml": profileFlow},
		},
		{
			name:    "unknown function",
			files:   map[string]string{"flows/bad.yaml": unknownFunctionFlow},
			wantErr: `function "grpc.call" is not registered`,
		},
		{
			name:    "missing dependency",
			files:   map[string]string{"flows/profile.yaml": profileFlow},
			wantErr: "depends on login",
		},
		{
			name:    "cycle",
			files:   map[string]string{"flows/a.yaml": cycleFlowA, "flows/b.yaml": cycleFlowB},
			wantErr: "circular dependency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, tt.files)
			out, err := execute(t, "validate", "-p", dir)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Contains(t, out, "flows valid")
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, &rootOptions{logFormat: "json"})
	l.Info("Flow finished", "flow", "login")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Flow finished", record["msg"])
	assert.Equal(t, "login", record["flow"])

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}
