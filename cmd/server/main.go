package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/config"
	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/event"
	httpserver "github.com/incaptta/crm-backend/internal/interfaces/http"
	"github.com/incaptta/crm-backend/internal/letter"
	"github.com/incaptta/crm-backend/internal/reactor"
	"github.com/incaptta/crm-backend/internal/service"
	"github.com/incaptta/crm-backend/internal/storage"
	"github.com/incaptta/crm-backend/pkg/database"
	"github.com/incaptta/crm-backend/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting CRM backend",
		zap.String("config", configPath))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(context.Background(), cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := docstore.New(db, logger)
	kvLogger := utils.NewKVLogger(logger)

	disp := dispatcher.New(dispatcher.WithLogger(kvLogger))
	defer disp.Close()

	blobs := storage.NewLocalBlobStore(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL, logger)

	letterReactor := reactor.NewLetterReactor(store, letter.NewRenderer(), blobs, disp, logger)
	disp.SubscribeNamed(event.TypeRequestApproved, "letter-generator", letterReactor.Handle)

	syncReactor := reactor.NewSyncReactor(store, reactor.SyncConfig{
		Endpoint: cfg.Sync.Endpoint,
		APIKey:   cfg.Sync.APIKey,
		Timeout:  cfg.Sync.Timeout,
	}, logger)
	disp.SubscribeNamed(event.TypePaymentRecorded, "external-sync", syncReactor.Handle)

	profiles := service.NewProfileService(store, logger)
	requests := service.NewRequestService(store, logger)
	orchestrator := service.NewOrchestrator(store, profiles, disp, logger)
	payments := service.NewPaymentService(store, disp, logger)
	reports := service.NewReportService(requests, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, orchestrator, requests, payments, reports, profiles, blobs, kvLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
