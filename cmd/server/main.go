package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sheikh-saqib/store-credit-ledger/internal/api"
	"github.com/sheikh-saqib/store-credit-ledger/internal/config"
	"github.com/sheikh-saqib/store-credit-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/ledger"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/sqlite"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if *migrateOnlyFlag {
		if err := migrate(cfg); err != nil {
			logger.Error("migrate-only failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed; exiting as requested")
		return
	}

	if cfg.MigrateOnStart {
		if err := migrate(cfg); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("open store failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		logger.Info("publishing ledger events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	ledgerService := ledger.NewLedger(store, opts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewHandler(ledgerService, cfg.CurrencySuffix, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("server gracefully stopped")
}

func openStore(ctx context.Context, cfg config.Config) (interfaces.LedgerStore, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.DatabaseDSN)
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseDSN)
	case "memory":
		return memory.NewMemoryLedgerStore(), nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}

func migrate(cfg config.Config) error {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.Migrate(cfg.DatabaseDSN)
	case "postgres":
		return postgres.Migrate(cfg.DatabaseDSN)
	case "memory":
		return nil
	}
	return fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}
