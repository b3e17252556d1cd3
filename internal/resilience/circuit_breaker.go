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
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed lets every call through
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout passes
	CircuitOpen
	// CircuitHalfOpen lets a limited number of trial calls through
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker behavior
type CircuitBreakerConfig struct {
	Name                string
	MaxFailures         int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	IsFailureFunc       func(error) bool
}

// DefaultCircuitBreakerConfig returns default configuration for circuit breaker
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:                name,
		MaxFailures:         5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
		IsFailureFunc:       DefaultIsFailureFunc,
	}
}

// DefaultIsFailureFunc counts every error except caller cancellation.
func DefaultIsFailureFunc(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreakerStats is a snapshot for health output
type CircuitBreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	TotalFailures   int       `json:"total_failures"`
	TotalSuccesses  int       `json:"total_successes"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	StateChanged    time.Time `json:"state_changed"`
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	config         CircuitBreakerConfig
	mu             sync.Mutex
	state          CircuitState
	failures       int
	inFlight       int
	totalFailures  int
	totalSuccesses int
	lastFailure    time.Time
	stateChanged   time.Time
	now            func() time.Time
	logger         *zap.Logger
}

// ErrCircuitBreakerOpen is returned when the circuit breaker is open
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.IsFailureFunc == nil {
		config.IsFailureFunc = DefaultIsFailureFunc
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		config:       config,
		state:        CircuitClosed,
		stateChanged: time.Now(),
		now:          time.Now,
		logger:       logger,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.acquire() {
		return ErrCircuitBreakerOpen
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.stateChanged) >= cb.config.ResetTimeout {
		cb.setState(CircuitHalfOpen)
	}

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.inFlight >= cb.config.HalfOpenMaxRequests {
			return false
		}
		cb.inFlight++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}

	if cb.config.IsFailureFunc(err) {
		cb.failures++
		cb.totalFailures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.setState(CircuitOpen)
		}
		return
	}

	cb.totalSuccesses++
	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.setState(CircuitClosed)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(next CircuitState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.stateChanged = cb.now()
	cb.inFlight = 0
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.config.Name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.Int("failures", cb.failures))
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns current statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:            cb.config.Name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		TotalFailures:   cb.totalFailures,
		TotalSuccesses:  cb.totalSuccesses,
		LastFailureTime: cb.lastFailure,
		StateChanged:    cb.stateChanged,
	}
}

// Reset closes the breaker and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.setState(CircuitClosed)
}
