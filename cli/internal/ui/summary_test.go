package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	passed := &runtime.FlowReport{FlowID: "login", Status: runtime.FlowPassed, Steps: []*runtime.StepReport{
		{StepID: "post_login", Status: runtime.StepPassed},
	}}
	failed := &runtime.FlowReport{FlowID: "checkout", Status: runtime.FlowFailed, Steps: []*runtime.StepReport{
		{StepID: "add_item", Status: runtime.StepPassed},
		{StepID: "pay", Status: runtime.StepFailed, Reason: "expected status 201, got 402"},
		{StepID: "confirm", Status: runtime.StepSkipped, Reason: "previous step pay failed"},
	}}
	skipped := runtime.SkipFlow(&runtime.Flow{ID: "refund", Steps: []runtime.Step{{ID: "refund"}}}, runtime.FlowSkipped, "dependency checkout did not pass")

	report := runtime.NewRunReport(time.Now(), []*runtime.FlowReport{passed, failed, skipped})

	var buf bytes.Buffer
	RenderSummary(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "login")
	assert.Contains(t, out, "expected status 201, got 402")
	assert.Contains(t, out, "previous step pay failed")
	assert.Contains(t, out, "dependency checkout did not pass")
	assert.NotContains(t, out, "add_item")
	assert.Contains(t, out, "3 flows:")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "1 skipped")
	assert.NotContains(t, out, "errored")
}

func TestRenderFlows(t *testing.T) {
	var buf bytes.Buffer
	RenderFlows(&buf, []*runtime.Flow{
		{ID: "login", Description: "Sign in with a seeded user", Tags: []string{"smoke", "auth"}, Steps: make([]runtime.Step, 2)},
		{ID: "order", DependsOn: "login", Steps: make([]runtime.Step, 5)},
	})
	out := buf.String()

	assert.Contains(t, out, "login")
	assert.Contains(t, out, "smoke, auth")
	assert.Contains(t, out, "Sign in with a seeded user")
	assert.Contains(t, out, "after login")
	assert.Contains(t, out, " 5 steps")
}
