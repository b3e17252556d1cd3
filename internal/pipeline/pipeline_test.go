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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/gonogo/internal/ideas"
)

const idea = "A subscription service for refurbished office chairs"

var sampleAnalysis = ideas.AnalysisResult{
	Feasibility:     "Feasible with existing suppliers",
	Demand:          "Remote workers want cheaper chairs",
	Challenges:      "Logistics for bulky items",
	Suggestions:     "Start regionally",
	ValidationScore: 66,
}

type fakeStages struct {
	mu           sync.Mutex
	analyzeErr   error
	enhanceErr   error
	analyzeCalls int
	enhanceCalls int
	gotFields    ideas.AnalysisFields
	block        chan struct{}
}

func (f *fakeStages) Analyze(_ context.Context, _ string) (ideas.AnalysisResult, error) {
	f.mu.Lock()
	f.analyzeCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.analyzeErr != nil {
		return ideas.AnalysisResult{}, f.analyzeErr
	}
	return sampleAnalysis, nil
}

func (f *fakeStages) Enhance(_ context.Context, fields ideas.AnalysisFields, _ string) (ideas.EnhancedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enhanceCalls++
	f.gotFields = fields
	if f.enhanceErr != nil {
		return ideas.EnhancedResult{}, f.enhanceErr
	}
	return ideas.EnhancedResult{EnhancedAnalysis: "Live data agrees", LiveDataSources: []string{"Trend related to chairs"}}, nil
}

func TestStateTransitions(t *testing.T) {
	s := NewState()
	assert.Equal(t, StatusIdle, s.Status)
	assert.False(t, s.CanEnhance())

	s, err := s.Submit(idea)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
	assert.True(t, s.Busy())

	_, err = s.Submit(idea)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.BeginEnhance()
	assert.ErrorIs(t, err, ErrBusy)

	s, err = s.Analyzed(sampleAnalysis)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.Status)
	assert.True(t, s.CanEnhance())

	s, err = s.BeginEnhance()
	require.NoError(t, err)
	assert.Equal(t, StatusEnhancing, s.Status)

	s, err = s.Enhanced(ideas.EnhancedResult{EnhancedAnalysis: "more"})
	require.NoError(t, err)
	assert.Equal(t, StatusEnhanced, s.Status)
	require.NotNil(t, s.Analysis)
	require.NotNil(t, s.Enhancement)

	again, err := s.BeginEnhance()
	require.NoError(t, err)
	assert.Equal(t, s, again)

	s, err = s.Submit("A completely different idea for pets")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
	assert.Nil(t, s.Analysis)
	assert.Nil(t, s.Enhancement)
}

func TestStateInvalidSubmit(t *testing.T) {
	ready, _ := State{Status: StatusPending, Idea: idea}.Analyzed(sampleAnalysis)

	s, err := ready.Submit("short")
	require.NoError(t, err)

	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, ErrorKindValidation, s.ErrorKind)
	assert.Equal(t, "Please describe your idea in at least 10 characters.", s.Error)
	assert.Nil(t, s.Analysis)
}

func TestStateFailed(t *testing.T) {
	pending := State{Status: StatusPending, Idea: idea}
	s, err := pending.Failed(ideas.AnalysisFailedMessage)
	require.NoError(t, err)
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, ErrorKindAnalysis, s.ErrorKind)

	ready, _ := pending.Analyzed(sampleAnalysis)
	enhancing, _ := ready.BeginEnhance()
	s, err = enhancing.Failed(ideas.EnhancementFailedMessage)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, ErrorKindEnhancement, s.ErrorKind)
	assert.Equal(t, sampleAnalysis, *s.Analysis)

	retry, err := s.BeginEnhance()
	require.NoError(t, err)
	assert.Empty(t, retry.Error)

	_, err = NewState().Failed("x")
	assert.Error(t, err)
}

func TestStateRejectsOutOfOrder(t *testing.T) {
	_, err := NewState().Analyzed(sampleAnalysis)
	assert.Error(t, err)

	_, err = NewState().Enhanced(ideas.EnhancedResult{})
	assert.Error(t, err)

	_, err = NewState().BeginEnhance()
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = State{Status: StatusError, Error: "x"}.BeginEnhance()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMachineHappyPath(t *testing.T) {
	stages := &fakeStages{}
	var seen []Status
	m := NewMachine(stages, func(_ context.Context, s State) error {
		seen = append(seen, s.Status)
		return nil
	})

	s, err := m.Submit(context.Background(), idea)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, 66.0, s.Analysis.ValidationScore)

	s, err = m.Enhance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusEnhanced, s.Status)
	assert.Equal(t, sampleAnalysis.Fields(), stages.gotFields)

	s, err = m.Enhance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusEnhanced, s.Status)
	assert.Equal(t, 1, stages.enhanceCalls)

	assert.Equal(t, []Status{StatusPending, StatusReady, StatusEnhancing, StatusEnhanced}, seen)
	assert.Equal(t, s, m.State())
}

func TestMachineInvalidIdeaSkipsModel(t *testing.T) {
	stages := &fakeStages{}
	m := NewMachine(stages, nil)

	s, err := m.Submit(context.Background(), "tiny")
	require.NoError(t, err)

	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, 0, stages.analyzeCalls)
}

func TestMachineAnalysisFailure(t *testing.T) {
	stages := &fakeStages{analyzeErr: &ideas.AnalysisError{Err: errors.New("model returned prose")}}
	m := NewMachine(stages, nil)

	s, err := m.Submit(context.Background(), idea)
	require.NoError(t, err)

	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, ideas.AnalysisFailedMessage, s.Error)
	assert.NotContains(t, s.Error, "prose")
}

func TestMachineEnhancementFailureKeepsAnalysis(t *testing.T) {
	stages := &fakeStages{enhanceErr: errors.New("boom")}
	m := NewMachine(stages, nil)

	_, err := m.Submit(context.Background(), idea)
	require.NoError(t, err)
	s, err := m.Enhance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, ideas.EnhancementFailedMessage, s.Error)
	assert.Equal(t, sampleAnalysis, *s.Analysis)
}

func TestMachineEnhanceBeforeAnalysis(t *testing.T) {
	m := NewMachine(&fakeStages{}, nil)

	_, err := m.Enhance(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMachineRejectsConcurrentSubmit(t *testing.T) {
	stages := &fakeStages{block: make(chan struct{})}
	m := NewMachine(stages, nil)

	done := make(chan State)
	go func() {
		s, _ := m.Submit(context.Background(), idea)
		done <- s
	}()

	require.Eventually(t, func() bool { return m.State().Status == StatusPending }, 2*time.Second, 5*time.Millisecond)

	_, err := m.Submit(context.Background(), idea)
	assert.ErrorIs(t, err, ErrBusy)

	close(stages.block)
	s := <-done
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, 1, stages.analyzeCalls)
}

func TestMachinePersistFailure(t *testing.T) {
	m := NewMachine(&fakeStages{}, func(context.Context, State) error { return errors.New("store down") })

	_, err := m.Submit(context.Background(), idea)
	assert.EqualError(t, err, "store down")
}

func TestRestore(t *testing.T) {
	ready, _ := State{Status: StatusPending, Idea: idea}.Analyzed(sampleAnalysis)
	m := Restore(ready, &fakeStages{}, nil)

	s, err := m.Enhance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusEnhanced, s.Status)

	assert.Equal(t, StatusIdle, Restore(State{}, nil, nil).State().Status)
}
