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

// Package resilience guards calls to the model endpoint with retries,
// a circuit breaker and per-attempt timeouts, and maps failures onto
// HTTP-friendly service errors.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig holds configuration for exponential backoff retry logic
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxRetries  int
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
	RetryOnFunc func(error) bool
}

const (
	// DefaultMaxDelaySeconds caps a single backoff wait
	DefaultMaxDelaySeconds = 30
	// DefaultMultiplier is the exponential growth factor between attempts
	DefaultMultiplier = 2.0
)

// DefaultBackoffConfig returns a config that retries maxRetries times after
// the first attempt. Zero means a single attempt.
func DefaultBackoffConfig(maxRetries int) BackoffConfig {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return BackoffConfig{
		BaseDelay:   time.Second,
		MaxRetries:  maxRetries,
		MaxDelay:    DefaultMaxDelaySeconds * time.Second,
		Multiplier:  DefaultMultiplier,
		Jitter:      true,
		RetryOnFunc: DefaultRetryOnFunc,
	}
}

// DefaultRetryOnFunc retries everything except cancellation and an open breaker.
func DefaultRetryOnFunc(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrCircuitBreakerOpen)
}

// RetryFunc is a function that can be retried with exponential backoff
type RetryFunc func(ctx context.Context) error

// WithExponentialBackoff executes fn, retrying failures accepted by
// config.RetryOnFunc until config.MaxRetries is exhausted.
func WithExponentialBackoff(ctx context.Context, logger *zap.Logger, config BackoffConfig, fn RetryFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryOn := config.RetryOnFunc
	if retryOn == nil {
		retryOn = DefaultRetryOnFunc
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt+1))
			}
			return nil
		}
		lastErr = err

		if !retryOn(err) {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		delay := config.delay(attempt)
		logger.Debug("Retrying after delay",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	logger.Warn("All retry attempts exhausted",
		zap.Error(lastErr),
		zap.Int("total_attempts", config.MaxRetries+1))
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

func (c BackoffConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter {
		// +/-10%
		d += time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	}
	return d
}
