package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API to list and run flows",
		Long: `Serve exposes the project's flows over HTTP:

  GET  /health
  GET  /flows
  GET  /flows/:id
  POST /flows/:id/run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			l := newLogger(cmd.ErrOrStderr(), root)
			p, err := loadProject(ctx, l, root, projectOptions{})
			if err != nil {
				return err
			}
			if err := p.start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := p.close(context.Background()); err != nil {
					l.Warn("Shutdown failed", "error", err)
				}
			}()

			if !root.debug {
				gin.SetMode(gin.ReleaseMode)
			}
			g := gin.New()
			g.Use(gin.Recovery())
			runtime.NewHttpHandler(l, p.app, p.executor, g)

			addr := p.cfg.Listen
			if listen != "" {
				addr = listen
			}
			srv := &http.Server{Addr: addr, Handler: g}

			errCh := make(chan error, 1)
			go func() {
				l.Info("Serving flows", "addr", addr, "flows", len(p.app.Flows))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			l.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from flowtest.yaml)")

	return cmd
}
