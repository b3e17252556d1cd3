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
	"fmt"
	"maps"
	"sync"
	"time"
)

// MemoryStorage provides in-memory session storage with LRU eviction
type MemoryStorage struct {
	sessions    map[string]*Session
	accessTime  map[string]time.Time
	maxSessions int
	mutex       sync.Mutex
}

// NewMemoryStorage creates a new in-memory session storage. maxSessions
// of zero or less disables eviction.
func NewMemoryStorage(maxSessions int) *MemoryStorage {
	return &MemoryStorage{
		sessions:    make(map[string]*Session),
		accessTime:  make(map[string]time.Time),
		maxSessions: maxSessions,
	}
}

// Get retrieves a copy of the session
func (m *MemoryStorage) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	m.accessTime[sessionID] = time.Now()
	return cloneSession(session), nil
}

// Set stores a copy of the session
func (m *MemoryStorage) Set(_ context.Context, session *Session, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[session.ID]; !exists && m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.evictOldestSession()
	}

	stored := cloneSession(session)
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	}
	m.sessions[session.ID] = stored
	m.accessTime[session.ID] = time.Now()
	return nil
}

// Delete removes a session
func (m *MemoryStorage) Delete(_ context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(m.sessions, sessionID)
	delete(m.accessTime, sessionID)
	return nil
}

// Exists checks if a session exists
func (m *MemoryStorage) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, exists := m.sessions[sessionID]
	return exists, nil
}

// Count returns the number of stored sessions
func (m *MemoryStorage) Count(_ context.Context) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sessions), nil
}

// Cleanup removes expired sessions
func (m *MemoryStorage) Cleanup(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for sessionID, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, sessionID)
			delete(m.accessTime, sessionID)
		}
	}
	return nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close drops all sessions
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions = make(map[string]*Session)
	m.accessTime = make(map[string]time.Time)
	return nil
}

// evictOldestSession removes the least recently used session
func (m *MemoryStorage) evictOldestSession() {
	var oldestID string
	var oldestTime time.Time

	for sessionID, accessed := range m.accessTime {
		if oldestID == "" || accessed.Before(oldestTime) {
			oldestID = sessionID
			oldestTime = accessed
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
		delete(m.accessTime, oldestID)
	}
}

// cloneSession copies the session; pipeline results are immutable once
// stored, so their pointers are shared.
func cloneSession(s *Session) *Session {
	c := *s
	c.Metadata = maps.Clone(s.Metadata)
	return &c
}
