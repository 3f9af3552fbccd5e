package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/dago-template/internal/config"
	"github.com/aescanero/dago-template/internal/eval/cel"
	"github.com/aescanero/dago-template/internal/eval/template"
	"github.com/aescanero/dago-template/internal/loader"
	"github.com/aescanero/dago-template/internal/store"
	"github.com/aescanero/dago-template/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting template worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Build the registry and load templates
	registry := template.NewRegistry(registryOptions(cfg, logger)...)

	if cfg.TemplateDir != "" {
		names, err := loader.New(cfg.TemplateExt, logger).LoadDir(registry, cfg.TemplateDir)
		if err != nil {
			logger.Fatal("failed to load templates", zap.String("dir", cfg.TemplateDir), zap.Error(err))
		}
		logger.Info("loaded templates from directory",
			zap.String("dir", cfg.TemplateDir),
			zap.Int("count", len(names)),
		)
	}

	templateStore := store.New(redisClient, cfg.TemplateHash, logger)
	if _, err := templateStore.RegisterAll(ctx, registry); err != nil {
		logger.Fatal("failed to load templates from redis", zap.Error(err))
	}

	// Initialize worker
	processor := worker.NewProcessor(cfg.WorkerID, registry, logger)
	w := worker.NewWorker(cfg, redisClient, processor, logger)

	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	// Start health server
	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, func() int {
		return len(registry.TemplateNames())
	}, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("template worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	if err := w.Stop(); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	logger.Info("worker stopped gracefully")
}

// registryOptions maps rendering configuration onto registry options
func registryOptions(cfg *config.Config, logger *zap.Logger) []template.Option {
	opts := []template.Option{
		template.WithLogger(logger),
		template.WithMaxDepth(cfg.MaxPartialDepth),
	}
	if !cfg.EscapeHTML {
		opts = append(opts, template.WithoutEscape())
	}
	if cfg.CELEnabled {
		opts = append(opts, template.WithCEL(cel.NewEvaluator(logger)))
	}
	return opts
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
