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

// Package orchestrator ties idea validation, the model-backed stages,
// sessions, progress streams and metrics together. It serves both the
// stateless form actions and the session-backed pipeline.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/metrics"
	"github.com/your-org/gonogo/internal/pipeline"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/session"
	"github.com/your-org/gonogo/internal/streaming"
)

// DefaultStaleAfter is how long a pipeline may sit in a busy state before
// a new request treats it as abandoned
const DefaultStaleAfter = 5 * time.Minute

// saveRetryDelay is the pause before the single retry of a failed
// pipeline save
const saveRetryDelay = 100 * time.Millisecond

// Analyzer runs Stage 1
type Analyzer interface {
	Analyze(ctx context.Context, idea string) (ideas.AnalysisResult, error)
}

// Enhancer runs Stage 3
type Enhancer interface {
	Enhance(ctx context.Context, fields ideas.AnalysisFields, idea string) (ideas.EnhancedResult, error)
}

// Scorer runs the standalone scoring flow
type Scorer interface {
	Generate(ctx context.Context, idea string) (ideas.ValidationScoreResult, error)
}

// SessionStore is the subset of session.Manager used here
type SessionStore interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	SavePipeline(ctx context.Context, sessionID string, state pipeline.State) (*session.Session, error)
}

// Deps are the collaborators of an Orchestrator. Sessions and Streams may
// be nil for stateless use; Metrics may be nil.
type Deps struct {
	Analyzer   Analyzer
	Enhancer   Enhancer
	Scorer     Scorer
	Sessions   SessionStore
	Streams    *streaming.StreamManager
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	StaleAfter time.Duration
}

// Orchestrator runs user actions
type Orchestrator struct {
	stages     *instrumentedStages
	scorer     Scorer
	sessions   SessionStore
	streams    *streaming.StreamManager
	logger     *zap.Logger
	staleAfter time.Duration
	inFlight   *flightSet
	saveRetry  resilience.BackoffConfig
}

// New creates an Orchestrator
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.StaleAfter <= 0 {
		deps.StaleAfter = DefaultStaleAfter
	}
	return &Orchestrator{
		stages: &instrumentedStages{
			analyzer: deps.Analyzer,
			enhancer: deps.Enhancer,
			metrics:  deps.Metrics,
		},
		scorer:     deps.Scorer,
		sessions:   deps.Sessions,
		streams:    deps.Streams,
		logger:     deps.Logger,
		staleAfter: deps.StaleAfter,
		inFlight:   newFlightSet(),
		saveRetry: resilience.BackoffConfig{
			BaseDelay:   saveRetryDelay,
			MaxRetries:  1,
			Multiplier:  resilience.DefaultMultiplier,
			RetryOnFunc: retrySave,
		},
	}
}

// ActionResult is the {error, data} shape returned by form actions.
// Exactly one of Error and Data is set. Err keeps the cause for status
// mapping and logs.
type ActionResult[T any] struct {
	Error *string `json:"error"`
	Data  *T      `json:"data"`
	Err   error   `json:"-"`
}

// OK reports whether the action succeeded
func (r ActionResult[T]) OK() bool {
	return r.Data != nil
}

func succeeded[T any](data T) ActionResult[T] {
	return ActionResult[T]{Data: &data}
}

func failed[T any](message string, err error) ActionResult[T] {
	return ActionResult[T]{Error: &message, Err: err}
}

// Analyze validates idea and runs Stage 1
func (o *Orchestrator) Analyze(ctx context.Context, idea string) ActionResult[ideas.AnalysisResult] {
	result, err := o.stages.Analyze(ctx, idea)
	if err != nil {
		return failed[ideas.AnalysisResult](ideas.UserMessage(err, ideas.AnalysisFailedMessage), err)
	}
	return succeeded(result)
}

// Enhance runs Stage 3 on analysis fields supplied by the caller
func (o *Orchestrator) Enhance(ctx context.Context, fields ideas.AnalysisFields, idea string) ActionResult[ideas.EnhancedResult] {
	result, err := o.stages.Enhance(ctx, fields, idea)
	if err != nil {
		return failed[ideas.EnhancedResult](ideas.UserMessage(err, ideas.EnhancementFailedMessage), err)
	}
	return succeeded(result)
}

// Score runs the standalone scoring flow
func (o *Orchestrator) Score(ctx context.Context, idea string) ActionResult[ideas.ValidationScoreResult] {
	if o.scorer == nil {
		return failed[ideas.ValidationScoreResult](ideas.ScoreFailedMessage, errScoringDisabled)
	}

	start := time.Now()
	result, err := o.scorer.Generate(ctx, idea)
	o.stages.metrics.ObserveStage(string(streaming.StageScore), time.Since(start), err)
	if err != nil {
		return failed[ideas.ValidationScoreResult](ideas.UserMessage(err, ideas.ScoreFailedMessage), err)
	}
	return succeeded(result)
}
