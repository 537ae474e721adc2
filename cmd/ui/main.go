package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"trade-recorder/internal/config"
	"trade-recorder/internal/database"
	"trade-recorder/internal/fees"
	"trade-recorder/internal/logger"
	"trade-recorder/internal/recorder"
	"trade-recorder/internal/store"
	"trade-recorder/internal/tradelog"
	"trade-recorder/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("backend", cfg.Store.Backend), zap.String("table", cfg.Store.Table))

	params, err := fees.ParamsFromConfig(&cfg.Fees)
	if err != nil {
		log.Fatal("Invalid fee schedule", zap.Error(err))
	}
	calc, err := fees.NewCalculator(params)
	if err != nil {
		log.Fatal("Invalid fee schedule", zap.Error(err))
	}

	tableStore, err := newTableStore(&cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize table store", zap.Error(err))
	}

	writer := tradelog.NewWriter(tableStore, log, tradelog.Options{
		Table:              cfg.Store.Table,
		Timeout:            cfg.Store.Timeout,
		MaxConflictRetries: cfg.Store.MaxConflictRetries,
	})
	service := recorder.NewService(calc, writer, log, cfg.Fees.BoardLot)

	server, err := web.NewServer(service, log, web.Options{
		Port:  cfg.Server.Port,
		Title: cfg.Server.Title,
		Icon:  cfg.Server.Icon,
	})
	if err != nil {
		log.Fatal("Failed to create web server", zap.Error(err))
	}
	server.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
	log.Info("Trade recorder has been shut down.")
}

func newTableStore(cfg *config.Config, log *zap.Logger) (store.TableStore, error) {
	switch cfg.Store.Backend {
	case config.BackendSheets:
		if cfg.Sheets.BaseURL == "" {
			return nil, fmt.Errorf("sheets.base_url is required for the %q backend", config.BackendSheets)
		}
		return store.NewRestStore(&cfg.Sheets, log), nil
	case config.BackendSQLite:
		db, err := database.NewDatabase(&cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Info("Database connection successful and schema migrated.")
		return store.NewSQLiteStore(db, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
