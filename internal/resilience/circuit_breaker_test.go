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
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(maxFailures int) (*CircuitBreaker, *time.Time) {
	config := DefaultCircuitBreakerConfig("model")
	config.MaxFailures = maxFailures
	config.ResetTimeout = time.Minute
	cb := NewCircuitBreaker(config, zap.NewNop())
	now := time.Now()
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failing(_ context.Context) error { return errors.New("boom") }
func passing(_ context.Context) error { return nil }

func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"), nil)

	if cb.GetState() != CircuitClosed {
		t.Errorf("Expected initial state to be closed, got %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.Name != "test" || stats.State != "closed" {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	if cb.GetState() != CircuitClosed {
		t.Fatalf("Expected closed after one failure, got %v", cb.GetState())
	}
	_ = cb.Execute(ctx, failing)
	if cb.GetState() != CircuitOpen {
		t.Fatalf("Expected open after two failures, got %v", cb.GetState())
	}

	called := false
	err := cb.Execute(ctx, func(_ context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
	if called {
		t.Error("Expected function not to run while open")
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, passing)
	_ = cb.Execute(ctx, failing)

	if cb.GetState() != CircuitClosed {
		t.Errorf("Expected closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	if cb.GetState() != CircuitOpen {
		t.Fatalf("Expected open, got %v", cb.GetState())
	}

	*now = now.Add(2 * time.Minute)
	if err := cb.Execute(ctx, passing); err != nil {
		t.Fatalf("Expected trial call to run, got %v", err)
	}
	if cb.GetState() != CircuitClosed {
		t.Errorf("Expected closed after successful trial call, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	*now = now.Add(2 * time.Minute)
	_ = cb.Execute(ctx, failing)

	if cb.GetState() != CircuitOpen {
		t.Errorf("Expected open after failed trial call, got %v", cb.GetState())
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1)

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return context.Canceled })

	if cb.GetState() != CircuitClosed {
		t.Errorf("Expected cancellation not to trip the breaker, got %v", cb.GetState())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	_ = cb.Execute(context.Background(), failing)

	cb.Reset()

	if cb.GetState() != CircuitClosed {
		t.Errorf("Expected closed after reset, got %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.Failures != 0 || stats.TotalFailures != 1 {
		t.Errorf("Unexpected stats after reset %+v", stats)
	}
}
