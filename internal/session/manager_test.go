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

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/pipeline"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Get(ctx context.Context, sessionID string) (*Session, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *mockStorage) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	return m.Called(ctx, session, ttl).Error(0)
}

func (m *mockStorage) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStorage) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStorage) Cleanup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStorage) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStorage) Close() error {
	return m.Called().Error(0)
}

func newMockedManager(storage Storage) *Manager {
	config := DefaultConfig()
	config.CleanupInterval = 0
	return NewManagerWithStorage(storage, config, zap.NewNop())
}

func TestSavePipelineStoresTitleAndState(t *testing.T) {
	storage := &mockStorage{}
	manager := newMockedManager(storage)
	state := pipeline.State{Status: pipeline.StatusPending, Idea: "A marketplace for used lab equipment"}

	storage.On("Get", mock.Anything, "abc").
		Return(&Session{ID: "abc", Title: DefaultTitle, ExpiresAt: time.Now().Add(time.Hour)}, nil)
	storage.On("Set", mock.Anything, mock.MatchedBy(func(s *Session) bool {
		return s.Title == state.Idea && s.Pipeline.Status == pipeline.StatusPending
	}), DefaultConfig().DefaultTTL).Return(nil)

	saved, err := manager.SavePipeline(context.Background(), "abc", state)
	require.NoError(t, err)
	assert.Equal(t, state.Idea, saved.Title)
	storage.AssertExpectations(t)
}

func TestSavePipelineStorageFailure(t *testing.T) {
	storage := &mockStorage{}
	manager := newMockedManager(storage)
	boom := errors.New("connection refused")

	storage.On("Get", mock.Anything, "abc").
		Return(&Session{ID: "abc", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	storage.On("Set", mock.Anything, mock.AnythingOfType("*session.Session"), mock.Anything).Return(boom)

	_, err := manager.SavePipeline(context.Background(), "abc", pipeline.NewState())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to update session")
}

func TestSavePipelineExpiredSession(t *testing.T) {
	storage := &mockStorage{}
	manager := newMockedManager(storage)

	storage.On("Get", mock.Anything, "old").
		Return(&Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}, nil)

	_, err := manager.SavePipeline(context.Background(), "old", pipeline.NewState())
	assert.ErrorIs(t, err, ErrSessionExpired)
	storage.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetStatsCountFailure(t *testing.T) {
	storage := &mockStorage{}
	manager := newMockedManager(storage)

	storage.On("Count", mock.Anything).Return(0, errors.New("timeout"))

	_, err := manager.GetStats(context.Background())
	assert.ErrorContains(t, err, "failed to count sessions")
}

func TestCloseClosesStorageOnce(t *testing.T) {
	storage := &mockStorage{}
	manager := newMockedManager(storage)

	storage.On("Close").Return(nil).Once()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())
	storage.AssertNumberOfCalls(t, "Close", 1)
}
