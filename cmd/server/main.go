package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/api"
	"github.com/quantdeck/tradesched/internal/config"
	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
	"github.com/quantdeck/tradesched/internal/monitor"
	"github.com/quantdeck/tradesched/internal/scheduler"
	"github.com/quantdeck/tradesched/internal/service"
	"github.com/quantdeck/tradesched/internal/storage"
	"github.com/quantdeck/tradesched/internal/task"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load bootstrap configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("TRADESCHED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":8085")
	viper.SetDefault("service.base_url", "http://localhost:3000")
	viper.SetDefault("service.timeout", 30*time.Second)
	viper.SetDefault("market.open_hour", 9)
	viper.SetDefault("market.close_hour", 16)
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.schedule_file", "./data/schedule.json")
	viper.SetDefault("data.journal_file", "./data/invocations.db")

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("No bootstrap config file, using defaults", zap.Error(err))
	}

	// Runtime schedule config
	store := config.NewStore(logger, viper.GetString("data.schedule_file"))
	scheduleCfg := store.Load()

	// Trading engine client
	client := service.NewClient(logger,
		viper.GetString("service.base_url"),
		viper.GetDuration("service.timeout"))

	// Artifact and journal storage
	artifacts, err := storage.NewArtifactStore(logger, viper.GetString("data.dir"))
	if err != nil {
		logger.Fatal("Failed to create artifact store", zap.Error(err))
	}
	journal, err := storage.NewInvocationJournal(logger, viper.GetString("data.journal_file"))
	if err != nil {
		logger.Fatal("Failed to open invocation journal", zap.Error(err))
	}
	defer journal.Close()

	hours := gating.MarketHours{
		OpenHour:  viper.GetInt("market.open_hour"),
		CloseHour: viper.GetInt("market.close_hour"),
	}

	metrics := monitor.NewCollector(logger)

	// Task catalog
	registry := task.NewRegistry(task.Deps{
		Logger:    logger,
		Service:   client,
		Config:    store,
		Artifacts: artifacts,
		Journal:   journal,
		Metrics:   metrics,
		Hours:     hours,
	})

	// Scheduler: rebuild once at boot, and again after every merge
	engine := scheduler.NewEngine(logger, registry, hours)
	store.OnChange(func(cfg model.ScheduleConfig) {
		if err := engine.Rebuild(cfg); err != nil {
			logger.Error("Failed to rebuild schedule", zap.Error(err))
		}
	})
	if err := engine.Rebuild(scheduleCfg); err != nil {
		logger.Fatal("Failed to build schedule", zap.Error(err))
	}

	// Management API
	server := api.NewServer(logger,
		viper.GetString("server.addr"),
		store, engine, registry, journal, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Management API failed", zap.Error(err))
		}
	}

	// Cancel timers first; in-flight invocations are not awaited.
	engine.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Management API shutdown timed out", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
