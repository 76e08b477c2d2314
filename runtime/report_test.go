package runtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestSkipFlow(t *testing.T) {
	flow := &Flow{ID: "f", Steps: []Step{{ID: "a"}, {ID: "b"}}}
	r := SkipFlow(flow, FlowSkipped, "dependency login did not pass")

	if r.Status != FlowSkipped || len(r.Steps) != 2 {
		t.Fatalf("report = %+v", r)
	}
	for _, s := range r.Steps {
		if s.Status != StepSkipped || s.Reason != "dependency login did not pass" {
			t.Errorf("step %s = %s %q", s.StepID, s.Status, s.Reason)
		}
	}
	if r.Step("b") == nil || r.Step("zzz") != nil {
		t.Error("Step lookup broken")
	}
}

func TestRunReport(t *testing.T) {
	flows := []*FlowReport{
		{FlowID: "a", Status: FlowPassed, Steps: []*StepReport{{}, {}}},
		{FlowID: "b", Status: FlowFailed, Steps: []*StepReport{{}}},
		{FlowID: "c", Status: FlowSkipped},
		{FlowID: "d", Status: FlowErrored},
	}
	r := NewRunReport(time.Now(), flows)

	want := Summary{Flows: 4, Passed: 1, Failed: 1, Skipped: 1, Errored: 1, Steps: 3}
	if r.Summary != want {
		t.Errorf("Summary = %+v, want %+v", r.Summary, want)
	}
	if !r.Failed() {
		t.Error("Failed() should be true")
	}
	if NewRunReport(time.Now(), flows[:1]).Failed() {
		t.Error("a passing run is not failed")
	}
}

func TestWriteReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewRunReport(time.Now(), []*FlowReport{{FlowID: "a", Status: FlowPassed}})

	path, err := WriteReport(fs, "/out/reports", r)
	if err != nil {
		t.Fatal(err)
	}
	if path != "/out/reports/report.json" {
		t.Errorf("path = %s", path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.ID != r.ID || decoded.Summary.Passed != 1 {
		t.Errorf("decoded report = %+v", decoded)
	}
}
