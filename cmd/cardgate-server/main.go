package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardgate/cardgate/internal/cardgate/service"
	sqlitestore "github.com/cardgate/cardgate/internal/cardgate/store/sqlite"
	"github.com/cardgate/cardgate/internal/config"
	"github.com/cardgate/cardgate/internal/db"
	"github.com/cardgate/cardgate/internal/httpapi"
	"github.com/cardgate/cardgate/internal/logging"
	"github.com/cardgate/cardgate/internal/metrics"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New("cardgate-server", cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Fatal().Err(err).Msg("seed dev data")
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	directory := sqlitestore.NewDirectory(conn, writer)
	auditLog := sqlitestore.NewAuditLog(conn, writer)
	heartbeatStore := sqlitestore.NewHeartbeatStore(conn, writer)

	m := metrics.New()

	authorizer := service.NewAuthorizer(directory, auditLog, logger, m, service.AuthorizerConfig{
		DirectoryTimeout: cfg.DirectoryTimeout,
		AuditTimeout:     cfg.AuditTimeout,
	})
	heartbeatSvc := service.NewHeartbeatService(heartbeatStore, directory)

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		Authorizer:       authorizer,
		HeartbeatService: heartbeatSvc,
		Directory:        directory,
		AuditLog:         auditLog,
		Metrics:          m,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
