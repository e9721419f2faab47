package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zaplink/zaplink/internal/config"
	"github.com/zaplink/zaplink/internal/logging"
	"github.com/zaplink/zaplink/internal/migrate"
	"github.com/zaplink/zaplink/internal/platform"
	"github.com/zaplink/zaplink/internal/provision"
	"github.com/zaplink/zaplink/internal/web"
	"github.com/zaplink/zaplink/migrations"
)

func main() {
	_ = godotenv.Load()
	logging.Init("setup-server", nil)
	if err := run(os.Args[1:], serveHTTP); err != nil {
		fatalf("setup-server: %v", err)
	}
}

var serveHTTP = func(srv *http.Server) error { return srv.ListenAndServe() }
var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}

func run(args []string, serve func(*http.Server) error) error {
	fs := flag.NewFlagSet("setup-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	saga := &provision.Saga{
		Clients: platform.Factory{
			HostingAPIBase:  cfg.Platforms.HostingAPIBase,
			DatabaseAPIBase: cfg.Platforms.DatabaseAPIBase,
			QueueAPIBase:    cfg.Platforms.QueueAPIBase,
			DatabaseRegion:  cfg.Provision.DatabaseRegion,
			Timeout:         cfg.PlatformHTTPTimeout(),
		},
		Migrator:     &migrate.Runner{Files: migrations.Files},
		Admins:       &migrate.AdminBootstrap{},
		DatabaseWait: time.Duration(cfg.Provision.DatabaseWaitSecs) * time.Second,
		StorageWait:  time.Duration(cfg.Provision.StorageWaitSecs) * time.Second,
		DeployWait:   time.Duration(cfg.Provision.DeployWaitSecs) * time.Second,
	}

	srv := web.NewServer(saga)
	srv.MaxBodyBytes = cfg.Server.MaxBodyBytes
	srv.RequestBudget = cfg.RequestBudget()
	if dsn := cfg.Provision.StatusDSN; dsn != "" {
		srv.Provisioned = func(ctx context.Context) error {
			return migrate.Reachable(ctx, dsn)
		}
	}

	// The provision stream outlives any sane write timeout, so the
	// server only bounds the idle and header phases.
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- serve(httpSrv) }()
	slog.Info("setup server listening", "addr", cfg.Server.HTTPAddr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}
