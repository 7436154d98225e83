// Package main provides the entry point for the traffic daemon.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/narvanalabs/mocktraffic/internal/api"
	"github.com/narvanalabs/mocktraffic/internal/auth"
	"github.com/narvanalabs/mocktraffic/internal/cleanup"
	grpcserver "github.com/narvanalabs/mocktraffic/internal/grpc"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
	"github.com/narvanalabs/mocktraffic/internal/profile"
	"github.com/narvanalabs/mocktraffic/internal/shutdown"
	"github.com/narvanalabs/mocktraffic/internal/stats"
	"github.com/narvanalabs/mocktraffic/internal/store"
	"github.com/narvanalabs/mocktraffic/internal/store/memory"
	"github.com/narvanalabs/mocktraffic/internal/store/postgres"
	"github.com/narvanalabs/mocktraffic/internal/traffic"
	"github.com/narvanalabs/mocktraffic/pkg/config"
	"github.com/narvanalabs/mocktraffic/pkg/logger"
	"github.com/narvanalabs/mocktraffic/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.FromEnv(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting mocktraffic", "version", version.Version, "app_id", version.AppID)

	st, err := openStore(cfg, log.WithComponent("store").Logger)
	if err != nil {
		log.Error("failed to open store", "error", err)
		return 1
	}

	prof, err := profile.Load(cfg.Traffic.ProfilePath)
	if err != nil {
		log.Error("failed to load profile", "error", err, "path", cfg.Traffic.ProfilePath)
		_ = st.Close()
		return 1
	}

	prefs := preferences.NewService(st, log.WithComponent("preferences").Logger)
	broker := stats.NewBroker(log.WithComponent("stats").Logger)
	generator := traffic.NewGenerator(prefs, st.Visits(), prof, broker, traffic.Config{
		ProbeURL:     cfg.Traffic.ProbeURL,
		ProbeTimeout: cfg.Traffic.ProbeTimeout,
	}, log.WithComponent("traffic").Logger)
	cleanupSvc := cleanup.NewService(st, log.WithComponent("cleanup").Logger)

	authSvc := auth.NewService(&auth.Config{
		JWTSecret:    []byte(cfg.JWTSecret),
		TokenExpiry:  cfg.JWTExpiry,
		PasswordHash: cfg.AdminPasswordHash,
	}, log.WithComponent("auth").Logger)
	if cfg.AuthDisabled {
		log.Warn("authentication is disabled")
	} else if !authSvc.PasswordConfigured() {
		log.Warn("ADMIN_PASSWORD_HASH is not set, password login is disabled")
	}

	apiServer := api.NewServer(cfg, st, prefs, generator, authSvc, log.WithComponent("api").Logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPCPort > 0 {
		grpcCfg := grpcserver.DefaultConfig()
		grpcCfg.Port = cfg.GRPCPort
		grpcSrv = grpcserver.NewServer(grpcCfg, st, log.WithComponent("grpc").Logger)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// Components stop in reverse order: API first, store last.
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.WithComponent("shutdown").Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(shutdown.NewStopperComponent("cleanup", cleanupSvc))
	coordinator.Register(shutdown.NewStopperComponent("traffic", generator))
	if grpcSrv != nil {
		coordinator.Register(shutdown.NewFuncComponent("grpc", grpcSrv.Stop))
	}
	coordinator.Register(shutdown.NewFuncComponent("api", apiServer.Shutdown))

	go runLoop(ctx, log.Logger, "traffic", generator.Start)
	go runLoop(ctx, log.Logger, "cleanup", cleanupSvc.Start)
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			cancel(err)
		}
	}()
	if grpcSrv != nil {
		go func() {
			log.Info("starting gRPC health server", "port", cfg.GRPCPort)
			if err := grpcSrv.Start(ctx); err != nil {
				cancel(err)
			}
		}()
	}

	coordinator.WaitForSignal(ctx)
	coordinator.Wait()

	code := coordinator.ExitCode()
	if cause := context.Cause(ctx); cause != nil {
		log.Error("server error", "error", cause)
		code = 1
	}
	log.Info("mocktraffic stopped", "exit_code", code)
	return code
}

func openStore(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.DatabaseDSN == "" {
		log.Info("DATABASE_URL is not set, using in-memory store")
		return memory.New(), nil
	}
	st, err := postgres.NewPostgresStore(postgres.DefaultConfig(cfg.DatabaseDSN), log)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func runLoop(ctx context.Context, log *slog.Logger, name string, start func(context.Context) error) {
	if err := start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("background loop failed", "component", name, "error", err)
	}
}
