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

// Package session stores per-visitor pipeline state so an analysis can be
// enhanced later and survives page reloads. Sessions live in memory or in
// Redis and expire after a configurable idle period.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/pipeline"
)

// StorageType represents the type of storage backend for sessions
type StorageType string

const (
	// MemoryStorageType uses in-memory storage for sessions
	MemoryStorageType StorageType = "memory"
	// RedisStorageType uses Redis for session storage
	RedisStorageType StorageType = "redis"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned for sessions past their expiry
	ErrSessionExpired = errors.New("session expired")
)

// Config holds configuration for session management
type Config struct {
	StorageType     StorageType   `json:"storage_type"`
	RedisURL        string        `json:"redis_url,omitempty"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	MaxSessions     int           `json:"max_sessions"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		StorageType:     MemoryStorageType,
		DefaultTTL:      30 * time.Minute,
		MaxSessions:     1000,
		CleanupInterval: 5 * time.Minute,
	}
}

// Session holds one visitor's pipeline
type Session struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Pipeline  pipeline.State    `json:"pipeline"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Storage defines the interface for session storage backends
type Storage interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Set stores a session; a positive ttl also moves ExpiresAt.
	Set(ctx context.Context, session *Session, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Count(ctx context.Context) (int, error)
	// Cleanup removes expired sessions
	Cleanup(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Manager handles session lifecycle and storage operations
type Manager struct {
	storage Storage
	config  Config
	logger  *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewManager creates a new session manager with the configured storage backend
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	var storage Storage

	switch config.StorageType {
	case MemoryStorageType, "":
		storage = NewMemoryStorage(config.MaxSessions)
	case RedisStorageType:
		redisStorage, err := NewRedisStorage(config.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis storage: %w", err)
		}
		storage = redisStorage
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	return NewManagerWithStorage(storage, config, logger), nil
}

// NewManagerWithStorage creates a manager over an existing backend
func NewManagerWithStorage(storage Storage, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	manager := &Manager{
		storage: storage,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		manager.wg.Add(1)
		go manager.cleanupLoop()
	}

	return manager
}

// CreateSession starts an idle session
func (m *Manager) CreateSession(ctx context.Context) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        GenerateSessionID(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.config.DefaultTTL),
		Pipeline:  pipeline.NewState(),
		Metadata:  make(map[string]string),
	}

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info("Created new session", zap.String("session_id", session.ID))
	return session, nil
}

// GetSession retrieves a live session by ID
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.storage.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if IsExpired(session) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}
	return session, nil
}

// UpdateSession stores session and extends its expiry
func (m *Manager) UpdateSession(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now()
	session.ExpiresAt = session.UpdatedAt.Add(m.config.DefaultTTL)

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// SavePipeline replaces the pipeline snapshot of a session
func (m *Manager) SavePipeline(ctx context.Context, sessionID string, state pipeline.State) (*Session, error) {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.Pipeline = state
	if state.Idea != "" {
		session.Title = GenerateTitle(state.Idea)
	}
	if err := m.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Debug("Saved pipeline state",
		zap.String("session_id", sessionID),
		zap.String("status", string(state.Status)))
	return session, nil
}

// DeleteSession removes a session
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.storage.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// Ping checks the storage backend
func (m *Manager) Ping(ctx context.Context) error {
	return m.storage.Ping(ctx)
}

// cleanupLoop runs periodic cleanup of expired sessions
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.storage.Cleanup(ctx); err != nil {
				m.logger.Error("Failed to cleanup expired sessions", zap.Error(err))
			}
			cancel()
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the cleanup loop and closes storage. Safe to call twice.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		if closeErr := m.storage.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close storage: %w", closeErr)
		}
	})
	return err
}

// GetStats returns session statistics
func (m *Manager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := m.storage.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	return map[string]interface{}{
		"storage_type":    string(m.config.StorageType),
		"active_sessions": count,
		"max_sessions":    m.config.MaxSessions,
		"default_ttl":     m.config.DefaultTTL.String(),
	}, nil
}
