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

package pipeline

import (
	"context"
	"sync"

	"github.com/your-org/gonogo/internal/ideas"
)

// Stages runs the model-backed steps
type Stages interface {
	Analyze(ctx context.Context, idea string) (ideas.AnalysisResult, error)
	Enhance(ctx context.Context, fields ideas.AnalysisFields, idea string) (ideas.EnhancedResult, error)
}

// ChangeFunc is called with every new state, before and after each stage.
// A returned error aborts the operation.
type ChangeFunc func(ctx context.Context, s State) error

// Machine drives one pipeline. Stage calls run without holding the lock so
// State stays readable while a stage is in flight.
type Machine struct {
	mu       sync.Mutex
	state    State
	stages   Stages
	onChange ChangeFunc
}

// NewMachine creates an idle machine
func NewMachine(stages Stages, onChange ChangeFunc) *Machine {
	return Restore(NewState(), stages, onChange)
}

// Restore resumes a machine from a persisted state
func Restore(state State, stages Stages, onChange ChangeFunc) *Machine {
	if state.Status == "" {
		state.Status = StatusIdle
	}
	return &Machine{state: state, stages: stages, onChange: onChange}
}

// State returns the current snapshot
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Submit runs Stage 1 for idea. Stage failures land in the returned state;
// the error is reserved for rejected transitions and persistence failures.
func (m *Machine) Submit(ctx context.Context, idea string) (State, error) {
	m.mu.Lock()
	next, err := m.state.Submit(idea)
	if err == nil {
		err = m.set(ctx, next)
	}
	m.mu.Unlock()
	if err != nil || next.Status != StatusPending {
		return next, err
	}

	result, stageErr := m.stages.Analyze(ctx, idea)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stageErr != nil {
		next, err = m.state.Failed(ideas.UserMessage(stageErr, ideas.AnalysisFailedMessage))
	} else {
		next, err = m.state.Analyzed(result)
	}
	if err != nil {
		return m.state, err
	}
	return next, m.set(ctx, next)
}

// Enhance runs Stage 3 on the current analysis. An already enhanced
// pipeline is returned as is without a model call.
func (m *Machine) Enhance(ctx context.Context) (State, error) {
	m.mu.Lock()
	next, err := m.state.BeginEnhance()
	if err == nil && next.Status == StatusEnhancing {
		err = m.set(ctx, next)
	}
	m.mu.Unlock()
	if err != nil || next.Status != StatusEnhancing {
		return next, err
	}

	result, stageErr := m.stages.Enhance(ctx, next.Analysis.Fields(), next.Idea)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stageErr != nil {
		next, err = m.state.Failed(ideas.UserMessage(stageErr, ideas.EnhancementFailedMessage))
	} else {
		next, err = m.state.Enhanced(result)
	}
	if err != nil {
		return m.state, err
	}
	return next, m.set(ctx, next)
}

// set must be called with mu held
func (m *Machine) set(ctx context.Context, s State) error {
	m.state = s
	if m.onChange != nil {
		return m.onChange(ctx, s)
	}
	return nil
}
