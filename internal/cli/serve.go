package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tesfaldet/haven/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API over the experiment list",
		Long: "Start an HTTP server exposing live status snapshots and result rows for\n" +
			"the experiment list. A background loop polls the orchestrator so records\n" +
			"stay current while the server runs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			cfg := ws.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			srv := server.New(cfg, ws.store, ws.ids, logger)
			httpServer := &http.Server{
				Addr:         cfg.Addr,
				Handler:      srv.Handler(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if pollInterval > 0 {
				go pollLoop(ctx, ws, pollInterval)
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr, "experiments", len(ws.ids))
				if serr := httpServer.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
					errCh <- serr
				}
			}()

			select {
			case serr := <-errCh:
				return serr
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "How often to poll the orchestrator (0 disables)")

	return cmd
}

// pollLoop refreshes live records on a fixed interval until ctx is done.
func pollLoop(ctx context.Context, ws *workspace, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := ws.launcher.Refresh(ctx, ws.ids); err != nil {
				logger.Warn("poll loop refresh failed", "error", err)
			}
		}
	}
}
