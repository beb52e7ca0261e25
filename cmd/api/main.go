package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"reftracker.org/internal/audit"
	"reftracker.org/internal/auth"
	"reftracker.org/internal/config"
	"reftracker.org/internal/httpapi"
	"reftracker.org/internal/migrate"
	"reftracker.org/internal/obs"
	"reftracker.org/internal/stakeholder"
	"reftracker.org/internal/store/pg"
	"reftracker.org/internal/stream"
	"reftracker.org/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const healthInterval = 5 * time.Second

// backend is what the service and readiness probes need from storage.
type backend interface {
	stakeholder.Store
	httpapi.Pinger
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("reftracker-api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	obs.SetLogger(logger)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	events := stream.New()
	svc, err := stakeholder.NewService(store, audit.NewRecorder(),
		stakeholder.WithNotifier(events),
		stakeholder.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	var tokens *auth.Tokens
	if cfg.AuthSecret != "" {
		tokens, err = auth.NewTokens(cfg.AuthSecret, auth.WithIssuer(cfg.AuthIssuer))
		if err != nil {
			return fmt.Errorf("build tokens: %w", err)
		}
	}

	probe := httpapi.ReadyProbe{Store: store}
	api := httpapi.New(httpapi.Options{
		Lifecycle:       svc,
		Stream:          events,
		Ready:           probe,
		Logger:          logger,
		Version:         version,
		Tokens:          tokens,
		TrustUserHeader: cfg.TrustsUserHeader(),
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RateBurst:       cfg.RateBurst,
		RatePerSec:      cfg.RatePerSec,
		CORSOrigins:     cfg.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	health := httpapi.NewHealthService(probe)
	grpcSrv := httpapi.NewGRPCServer(health, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr), slog.String("version", version))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Info("grpc listening", slog.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		health.Run(gctx, healthInterval, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn("no database configured, using in-memory store")
		return stakeholder.NewInMemory(), func() {}, nil
	}
	db, err := pg.Open(cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.AutoMigrate {
		applied, err := migrate.NewManager(db.DB(), migrations.FS).Up(ctx)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		for _, name := range applied {
			logger.Info("migration applied", slog.String("name", name))
		}
	}
	return db, func() { _ = db.Close() }, nil
}
