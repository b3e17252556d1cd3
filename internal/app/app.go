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

// Package app assembles the services shared by the web server and the CLI
// from a loaded configuration.
package app

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/config"
	"github.com/your-org/gonogo/internal/feedback"
	"github.com/your-org/gonogo/internal/health"
	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/metrics"
	"github.com/your-org/gonogo/internal/openai"
	"github.com/your-org/gonogo/internal/orchestrator"
	"github.com/your-org/gonogo/internal/prompt"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/session"
	"github.com/your-org/gonogo/internal/streaming"
	"github.com/your-org/gonogo/internal/tools"
)

// Version is reported by health checks and the CLI
const Version = "1.0.0"

// Options selects the optional parts of the graph
type Options struct {
	ServiceName string
	// Invoker replaces the model-backed invoker; no client is created
	Invoker  prompt.Invoker
	Sessions bool
	Feedback bool
}

// App holds the assembled services
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Client       *openai.Client
	Invoker      prompt.Invoker
	Tools        *tools.Registry
	Sessions     *session.Manager
	Streams      *streaming.StreamManager
	Feedback     *feedback.Logger
	Metrics      *metrics.Metrics
	Health       *health.Manager
	Orchestrator *orchestrator.Orchestrator
}

// New builds the service graph. Close releases what it opened.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "gonogo"
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Health:  health.NewManager(opts.ServiceName, Version, logger),
	}

	toolRegistry, err := tools.NewDefaultRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	toolRegistry.SetObserver(a.Metrics.ObserveTool)
	a.Tools = toolRegistry

	if opts.Invoker != nil {
		a.Invoker = opts.Invoker
	} else if err := a.initModel(); err != nil {
		return nil, err
	}

	var sessions orchestrator.SessionStore
	if opts.Sessions {
		if err := a.initSessions(); err != nil {
			_ = a.Close()
			return nil, err
		}
		sessions = a.Sessions
	}

	if opts.Feedback {
		if err := a.initFeedback(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	a.Orchestrator = orchestrator.New(orchestrator.Deps{
		Analyzer: ideas.NewAnalyzer(a.Invoker, logger),
		Enhancer: ideas.NewEnhancer(a.Invoker, logger),
		Scorer:   ideas.NewScoreGenerator(a.Invoker, logger),
		Sessions: sessions,
		Streams:  a.Streams,
		Metrics:  a.Metrics,
		Logger:   logger,
	})

	return a, nil
}

func (a *App) initModel() error {
	cfg := a.Config
	breaker := resilience.DefaultCircuitBreakerConfig("openai")
	if cfg.OpenAI.CircuitBreakerFailures > 0 {
		breaker.MaxFailures = cfg.OpenAI.CircuitBreakerFailures
	}
	if cfg.OpenAI.CircuitBreakerResetSeconds > 0 {
		breaker.ResetTimeout = time.Duration(cfg.OpenAI.CircuitBreakerResetSeconds) * time.Second
	}

	client, err := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Endpoint:       cfg.OpenAI.Endpoint,
		Model:          cfg.OpenAI.Model,
		MaxRetries:     cfg.OpenAI.MaxRetries,
		RequestTimeout: cfg.OpenAI.RequestTimeout(),
		Breaker:        breaker,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	templates, err := prompt.LoadDefaults()
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if cfg.Prompts.Dir != "" {
		if err := templates.LoadDir(cfg.Prompts.Dir); err != nil {
			return fmt.Errorf("failed to load prompts from %s: %w", cfg.Prompts.Dir, err)
		}
		a.Logger.Info("Loaded prompt overrides", zap.String("dir", cfg.Prompts.Dir))
	}

	a.Client = client
	a.Invoker = prompt.NewModelInvoker(client, templates, a.Tools, prompt.InvokerConfig{
		Model:          client.Model(),
		MaxToolRounds:  cfg.Enhancement.MaxToolRounds,
		ResponseFormat: cfg.OpenAI.ResponseFormat,
		Overrides:      CallOverrides(cfg),
	}, a.Logger)

	a.Health.AddChecker("openai", health.ExternalServiceHealthChecker("openai", client.Ping))
	a.Health.AddChecker("openai_breaker", health.CircuitBreakerHealthChecker(client.BreakerStats))
	return nil
}

func (a *App) initSessions() error {
	cfg := a.Config.Session
	manager, err := session.NewManager(session.Config{
		StorageType:     session.StorageType(cfg.StorageType),
		RedisURL:        cfg.RedisURL,
		DefaultTTL:      time.Duration(cfg.DefaultTTLMinutes) * time.Minute,
		MaxSessions:     cfg.MaxSessions,
		CleanupInterval: time.Duration(cfg.CleanupIntervalMinutes) * time.Minute,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}
	a.Sessions = manager
	a.Streams = streaming.NewStreamManager()
	a.Health.AddChecker("sessions", health.StoreHealthChecker("sessions", manager.Ping))

	streams := a.Streams
	if err := a.Metrics.RegisterGauge("active_streams", "Number of open progress streams",
		func() float64 { return float64(streams.Count()) }); err != nil {
		return fmt.Errorf("failed to register stream gauge: %w", err)
	}
	return nil
}

func (a *App) initFeedback() error {
	cfg := a.Config.Feedback
	logger, err := feedback.NewLogger(feedback.Config{
		StorageType: cfg.StorageType,
		FilePath:    cfg.FilePath,
		DBPath:      cfg.DBPath,
		PostgresDSN: cfg.PostgresDSN,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize feedback logger: %w", err)
	}
	a.Feedback = logger
	a.Health.AddChecker("feedback", health.StoreHealthChecker("feedback", logger.Ping))
	return nil
}

// CallOverrides maps the per-stage config onto prompt templates. The
// scoring flow shares the analysis settings.
func CallOverrides(cfg *config.Config) map[string]prompt.CallSettings {
	analysis := callSettings(cfg.Analysis)
	return map[string]prompt.CallSettings{
		ideas.AnalyzePrompt: analysis,
		ideas.ScorePrompt:   analysis,
		ideas.EnhancePrompt: callSettings(cfg.Enhancement.StageConfig),
	}
}

func callSettings(stage config.StageConfig) prompt.CallSettings {
	settings := prompt.CallSettings{MaxTokens: stage.MaxTokens}
	if stage.Temperature != nil {
		t := float32(*stage.Temperature)
		settings.Temperature = &t
	}
	return settings
}

// Close releases storage handles
func (a *App) Close() error {
	var errs []error
	if a.Sessions != nil {
		errs = append(errs, a.Sessions.Close())
	}
	if a.Feedback != nil {
		errs = append(errs, a.Feedback.Close())
	}
	return errors.Join(errs...)
}
