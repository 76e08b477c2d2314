package runtime

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FlowRunner runs a single flow. *Executor satisfies it.
type FlowRunner interface {
	ExecuteFlow(ctx context.Context, flow *Flow) *FlowReport
}

type flowSummary struct {
	ID          string   `json:"flow_id"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DependsOn   string   `json:"depends_on,omitempty"`
	Steps       int      `json:"steps"`
	Source      string   `json:"source,omitempty"`
}

type stepSummary struct {
	ID          string `json:"step_id"`
	Description string `json:"description,omitempty"`
	Function    string `json:"function"`
	Context     string `json:"context"`
}

func summarize(f *Flow) flowSummary {
	return flowSummary{
		ID:          f.ID,
		Description: f.Description,
		Tags:        f.Tags,
		DependsOn:   f.DependsOn,
		Steps:       len(f.Steps),
		Source:      f.SourcePath,
	}
}

// NewHttpHandler registers the serve-mode routes:
//
//	GET  /health
//	GET  /flows
//	GET  /flows/:id
//	POST /flows/:id/run
func NewHttpHandler(l *slog.Logger, app *App, runner FlowRunner, g *gin.Engine) {
	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g.GET("/flows", func(c *gin.Context) {
		out := make([]flowSummary, 0, len(app.Flows))
		for _, id := range app.FlowIDs() {
			out = append(out, summarize(app.Flows[id]))
		}
		c.JSON(http.StatusOK, out)
	})

	g.GET("/flows/:id", func(c *gin.Context) {
		f, ok := app.Flow(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found: " + c.Param("id")})
			return
		}
		steps := make([]stepSummary, 0, len(f.Steps))
		for _, s := range f.Steps {
			steps = append(steps, stepSummary{
				ID:          s.ID,
				Description: s.Description,
				Function:    s.Function,
				Context:     SelectContext(f, s),
			})
		}
		c.JSON(http.StatusOK, gin.H{"flow": summarize(f), "steps": steps})
	})

	g.POST("/flows/:id/run", handleRun(l, app, runner))
}

func handleRun(l *slog.Logger, app *App, runner FlowRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := app.Flow(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found: " + c.Param("id")})
			return
		}

		report := runner.ExecuteFlow(c.Request.Context(), f)
		l.Info("Flow run via HTTP",
			"flow", f.ID,
			"status", report.Status,
			"remote", c.ClientIP())

		status := http.StatusOK
		if report.Status != FlowPassed {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, report)
	}
}
