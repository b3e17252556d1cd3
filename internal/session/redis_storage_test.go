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
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/gonogo/internal/pipeline"
)

type fakeRedisEntry struct {
	value string
	ttl   time.Duration
}

// fakeRedis is an in-process RedisClient for tests
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]fakeRedisEntry
	pingErr error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]fakeRedisEntry)}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key].value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return errors.New("unsupported value type")
	}
	f.data[key] = fakeRedisEntry{value: s, ttl: expiration}
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) Keys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeRedis) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	storage := NewRedisStorageWithClient(client, zaptest.NewLogger(t))

	state, _ := pipeline.NewState().Submit("Weekly meal prep for busy parents")
	session := &Session{ID: "abc", Title: "Meal prep", CreatedAt: time.Now(), Pipeline: state}
	require.NoError(t, storage.Set(ctx, session, 10*time.Minute))

	entry := client.data[redisKeyPrefix+"abc"]
	assert.Equal(t, 10*time.Minute, entry.ttl)
	assert.Contains(t, entry.value, `"status":"pending"`)

	got, err := storage.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Meal prep", got.Title)
	assert.Equal(t, pipeline.StatusPending, got.Pipeline.Status)
	assert.Equal(t, "Weekly meal prep for busy parents", got.Pipeline.Idea)

	exists, err := storage.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, storage.Delete(ctx, "abc"))
	_, err = storage.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, storage.Delete(ctx, "abc"), ErrSessionNotFound)
}

func TestRedisStorageKeepsRemainingTTL(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	storage := NewRedisStorageWithClient(client, nil)

	session := &Session{ID: "keep", ExpiresAt: time.Now().Add(5 * time.Minute)}
	require.NoError(t, storage.Set(ctx, session, 0))
	ttl := client.data[redisKeyPrefix+"keep"].ttl
	assert.InDelta(t, (5 * time.Minute).Seconds(), ttl.Seconds(), 2)

	expired := &Session{ID: "gone", ExpiresAt: time.Now().Add(-time.Second)}
	assert.Error(t, storage.Set(ctx, expired, 0))
}

func TestRedisStoragePingAndClose(t *testing.T) {
	client := newFakeRedis()
	client.pingErr = errors.New("connection refused")
	storage := NewRedisStorageWithClient(client, nil)

	assert.Error(t, storage.Ping(context.Background()))
	assert.NoError(t, storage.Cleanup(context.Background()))
	require.NoError(t, storage.Close())
	assert.True(t, client.closed)
}

func TestRedisStorageCorruptPayload(t *testing.T) {
	client := newFakeRedis()
	client.data[redisKeyPrefix+"bad"] = fakeRedisEntry{value: "{not json"}
	storage := NewRedisStorageWithClient(client, nil)

	_, err := storage.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionNotFound))
}

func TestManagerOverRedis(t *testing.T) {
	ctx := context.Background()
	storage := NewRedisStorageWithClient(newFakeRedis(), nil)
	manager := NewManagerWithStorage(storage, Config{StorageType: RedisStorageType, DefaultTTL: time.Minute}, zaptest.NewLogger(t))
	defer manager.Close()

	session, err := manager.CreateSession(ctx)
	require.NoError(t, err)

	state, _ := pipeline.NewState().Submit("short")
	saved, err := manager.SavePipeline(ctx, session.ID, state)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusError, saved.Pipeline.Status)

	loaded, err := manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Please describe your idea in at least 10 characters.", loaded.Pipeline.Error)
	assert.NoError(t, manager.Ping(ctx))
}
