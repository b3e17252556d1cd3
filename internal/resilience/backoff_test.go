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

package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fastBackoff(retries int) BackoffConfig {
	config := DefaultBackoffConfig(retries)
	config.BaseDelay = time.Millisecond
	config.Jitter = false
	return config
}

func TestDefaultBackoffConfig(t *testing.T) {
	config := DefaultBackoffConfig(2)

	if config.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay to be 1 second, got %v", config.BaseDelay)
	}
	if config.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries to be 2, got %d", config.MaxRetries)
	}
	if DefaultBackoffConfig(-1).MaxRetries != 0 {
		t.Error("Expected negative retries to clamp to 0")
	}
}

func TestWithExponentialBackoff_SingleAttemptByDefault(t *testing.T) {
	attempts := 0
	cause := errors.New("upstream failed")

	err := WithExponentialBackoff(context.Background(), zap.NewNop(), fastBackoff(0), func(_ context.Context) error {
		attempts++
		return cause
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestWithExponentialBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := WithExponentialBackoff(context.Background(), nil, fastBackoff(3), func(_ context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestWithExponentialBackoff_Exhausted(t *testing.T) {
	attempts := 0
	err := WithExponentialBackoff(context.Background(), nil, fastBackoff(2), func(_ context.Context) error {
		attempts++
		return errors.New("still failing")
	})

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected exhaustion error, got %v", err)
	}
}

func TestWithExponentialBackoff_NonRetryable(t *testing.T) {
	config := fastBackoff(5)
	config.RetryOnFunc = func(error) bool { return false }

	attempts := 0
	_ = WithExponentialBackoff(context.Background(), nil, config, func(_ context.Context) error {
		attempts++
		return errors.New("fatal")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastBackoff(5)
	config.BaseDelay = time.Hour

	attempts := 0
	err := WithExponentialBackoff(ctx, nil, config, func(_ context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestDefaultRetryOnFunc(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", errors.Join(errors.New("x"), context.DeadlineExceeded), false},
		{"breaker open", ErrCircuitBreakerOpen, false},
		{"generic", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryOnFunc(tt.err); got != tt.want {
				t.Errorf("DefaultRetryOnFunc(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	config := fastBackoff(10)
	config.BaseDelay = time.Second
	config.MaxDelay = 5 * time.Second

	if d := config.delay(0); d != time.Second {
		t.Errorf("Expected 1s for first retry, got %v", d)
	}
	if d := config.delay(8); d != 5*time.Second {
		t.Errorf("Expected delay capped at 5s, got %v", d)
	}
}
