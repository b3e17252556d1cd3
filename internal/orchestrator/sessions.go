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

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/pipeline"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/session"
	"github.com/your-org/gonogo/internal/streaming"
)

var errNoSessions = errors.New("session storage not configured")

// flightSet tracks sessions with a stage call in progress
type flightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newFlightSet() *flightSet {
	return &flightSet{ids: make(map[string]struct{})}
}

// acquire marks id busy. It fails when id is already busy.
func (f *flightSet) acquire(id string) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.ids[id]; busy {
		return nil, false
	}
	f.ids[id] = struct{}{}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.ids, id)
	}, true
}

// CreateSession starts an idle pipeline
func (o *Orchestrator) CreateSession(ctx context.Context) (*session.Session, error) {
	if o.sessions == nil {
		return nil, errNoSessions
	}
	return o.sessions.CreateSession(ctx)
}

// GetSession loads a session
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if o.sessions == nil {
		return nil, errNoSessions
	}
	return o.sessions.GetSession(ctx, sessionID)
}

// Submit runs a new idea through Stage 1 in the session's pipeline. Stage
// failures are recorded in the returned session; the error reports
// rejected requests such as ErrBusy or unknown sessions.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, idea string) (*session.Session, error) {
	return o.run(ctx, sessionID, streaming.StageAnalyze, func(ctx context.Context, m *pipeline.Machine) (pipeline.State, error) {
		return m.Submit(ctx, idea)
	})
}

// EnhanceSession runs Stage 3 on the session's analysis. An already
// enhanced session is returned without a model call.
func (o *Orchestrator) EnhanceSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return o.run(ctx, sessionID, streaming.StageEnhance, func(ctx context.Context, m *pipeline.Machine) (pipeline.State, error) {
		return m.Enhance(ctx)
	})
}

type pipelineStep func(ctx context.Context, m *pipeline.Machine) (pipeline.State, error)

func (o *Orchestrator) run(ctx context.Context, sessionID string, stage streaming.StageType, step pipelineStep) (*session.Session, error) {
	if o.sessions == nil {
		return nil, errNoSessions
	}

	release, ok := o.inFlight.acquire(sessionID)
	if !ok {
		return nil, pipeline.ErrBusy
	}
	defer release()

	sess, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var stream *streaming.EventStream
	if o.streams != nil {
		stream = o.streams.CreateStream(sessionID)
	}
	ctx = streaming.WithStream(ctx, stream)

	// Persisting must survive a client disconnect, or the pipeline would
	// stay busy.
	persistCtx := context.WithoutCancel(ctx)
	current := sess
	machine := pipeline.Restore(o.recoverStale(sess), o.stages, func(_ context.Context, s pipeline.State) error {
		saved, err := o.savePipeline(persistCtx, sessionID, s)
		if err != nil {
			return err
		}
		current = saved
		return nil
	})

	final, err := step(ctx, machine)
	if err != nil {
		o.logger.Warn("Pipeline request rejected",
			zap.String("session_id", sessionID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		stream.EmitError(stage, Classify(err, fallbackMessage(stage)).Message, nil)
		return nil, err
	}

	o.logger.Info("Pipeline step finished",
		zap.String("session_id", sessionID),
		zap.String("stage", string(stage)),
		zap.String("status", string(final.Status)),
		zap.String("error_kind", string(final.ErrorKind)))

	data := map[string]interface{}{"status": string(final.Status)}
	if final.Error != "" {
		stream.EmitError(stage, final.Error, data)
	} else {
		stream.EmitComplete("Done", data)
	}
	return current, nil
}

// savePipeline stores s, retrying once. A state that still cannot be stored
// is logged with what it carried, since a finished stage result is lost
// with it.
func (o *Orchestrator) savePipeline(ctx context.Context, sessionID string, s pipeline.State) (*session.Session, error) {
	var saved *session.Session
	err := resilience.WithExponentialBackoff(ctx, o.logger, o.saveRetry, func(ctx context.Context) error {
		var err error
		saved, err = o.sessions.SavePipeline(ctx, sessionID, s)
		return err
	})
	if err != nil {
		o.logger.Error("Failed to persist pipeline state",
			zap.String("session_id", sessionID),
			zap.String("status", string(s.Status)),
			zap.Bool("has_analysis", s.Analysis != nil),
			zap.Bool("has_enhancement", s.Enhancement != nil),
			zap.Error(err))
		return nil, err
	}
	return saved, nil
}

// retrySave skips retries for sessions that are gone
func retrySave(err error) bool {
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
		return false
	}
	return resilience.DefaultRetryOnFunc(err)
}

func fallbackMessage(stage streaming.StageType) string {
	if stage == streaming.StageEnhance {
		return ideas.EnhancementFailedMessage
	}
	return ideas.AnalysisFailedMessage
}

// recoverStale settles a pipeline left busy by a run that never finished,
// e.g. after a restart
func (o *Orchestrator) recoverStale(sess *session.Session) pipeline.State {
	state := sess.Pipeline
	if !state.Busy() || time.Since(sess.UpdatedAt) < o.staleAfter {
		return state
	}
	recovered, err := state.Failed(StaleRunMessage)
	if err != nil {
		return state
	}
	o.logger.Warn("Recovered stale pipeline",
		zap.String("session_id", sess.ID),
		zap.String("status", string(state.Status)))
	return recovered
}
