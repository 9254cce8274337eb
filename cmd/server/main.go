package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jardisPsr/foundation/internal/bootstrap"
	"github.com/jardisPsr/foundation/internal/platform/config"
	"github.com/jardisPsr/foundation/internal/platform/httpserver"
	httptransport "github.com/jardisPsr/foundation/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main loads configuration from APP_ROOT, assembles the kernel, and serves
// the operational endpoints until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "foundation: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	appRoot, err := resolveAppRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(appRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "foundation: shutdown: %v\n", err)
		}
	}()
	log := app.Logger

	handler := httptransport.NewHandler(app.Registry, app.Health, log)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// resolveAppRoot reads APP_ROOT, defaulting to the working directory.
func resolveAppRoot() (string, error) {
	root := os.Getenv("APP_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve APP_ROOT %q: %w", root, err)
	}
	return abs, nil
}
