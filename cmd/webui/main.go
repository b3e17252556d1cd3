// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the web UI service: the idea form, the session
// pipeline pages, the JSON action API and progress streaming.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/app"
	"github.com/your-org/gonogo/internal/config"
	"github.com/your-org/gonogo/internal/logging"
)

const (
	// StreamCleanupInterval is how often finished progress streams are dropped
	StreamCleanupInterval = time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *configPath, level); err != nil {
		logger.Fatal("Web UI stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, configPath string, level zap.AtomicLevel) error {
	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "webui"),
		zap.String("openai_endpoint", masked.OpenAI.Endpoint),
		zap.String("openai_api_key", masked.OpenAI.APIKey),
		zap.String("model", masked.OpenAI.Model),
		zap.String("session_storage", masked.Session.StorageType),
		zap.String("redis_url", masked.Session.RedisURL),
		zap.String("feedback_storage", masked.Feedback.StorageType))

	if err := config.WatchConfig(configPath, logger, func(updated *config.Config) {
		level.SetLevel(logging.ParseLevel(updated.Logging.Level))
		logger.Info("Log level updated", zap.String("level", updated.Logging.Level))
	}); err != nil {
		logger.Warn("Config hot reload disabled", zap.Error(err))
	}

	services, err := app.New(cfg, logger, app.Options{
		ServiceName: "webui",
		Sessions:    true,
		Feedback:    true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("Failed to close services", zap.Error(err))
		}
	}()

	gin.SetMode(cfg.Server.Mode)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := NewServer(ServerDeps{
		Orchestrator: services.Orchestrator,
		Feedback:     services.Feedback,
		Streams:      services.Streams,
		Metrics:      services.Metrics,
		Health:       services.Health,
		MetricsPath:  metricsPath,
		Logger:       logger,
	})
	router, err := server.Router()
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maxAge := time.Duration(cfg.Server.StreamMaxAgeMinutes) * time.Minute
	go services.Streams.RunCleanup(ctx, StreamCleanupInterval, maxAge)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting Web UI server",
			zap.Int("port", cfg.Server.Port),
			zap.String("service", "webui"))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Web UI server stopped")
	return nil
}
