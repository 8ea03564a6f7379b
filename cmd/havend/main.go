// havend serves the read-only status API for one experiment list and keeps
// its records current by polling the orchestrator in the background. The
// haven CLI owns every write path; havend only reads and reconciles.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/launcher"
	"github.com/tesfaldet/haven/internal/logging"
	"github.com/tesfaldet/haven/internal/server"
	"github.com/tesfaldet/haven/internal/store"
)

func main() {
	configPath := flag.String("config", "haven.yaml", "Config file (backend, launch, server sections)")
	expListPath := flag.String("experiments", "exp_list.yaml", "Experiment list file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	pollInterval := flag.Duration("poll-interval", 30*time.Second, "How often to poll the orchestrator (0 disables)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *debug {
		cfg.Server.LogLevel = "debug"
	}
	logger := logging.NewLogger(logging.ParseLevel(cfg.Server.LogLevel), cfg.Server.LogFormat)

	specs, err := config.LoadExperimentList(*expListPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.ID())
	}

	st, err := store.NewFileStore(cfg.Launch.SavedirBase, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, st, ids, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pollInterval > 0 {
		l := launcher.New(st, backend.NewClient(cfg.Backend, logger), cfg.Launch, logger)
		go func() {
			ticker := time.NewTicker(*pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, rerr := l.Refresh(ctx, ids); rerr != nil {
						logger.Warn("poll refresh failed", "error", rerr)
					}
				}
			}
		}()
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "experiments", len(ids))
		if serr := httpServer.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
			logger.Error("server failed", "error", serr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
