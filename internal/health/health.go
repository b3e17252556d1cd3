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

// Package health reports the state of the model endpoint and the session
// and feedback stores
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/gonogo/internal/resilience"
)

const (
	// StatusHealthy represents healthy status
	StatusHealthy = "healthy"
	// StatusUnhealthy represents unhealthy status
	StatusUnhealthy = "unhealthy"
	// StatusDegraded represents degraded status
	StatusDegraded = "degraded"
	// DefaultTimeout is the default timeout for health checks
	DefaultTimeout = 5 * time.Second
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Latency   time.Duration          `json:"latency"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Uptime       time.Duration          `json:"uptime"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	Metadata     map[string]interface{} `json:"metadata"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc is a function adapter for the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager manages health checks for a service
type Manager struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewManager creates a new health check manager
func NewManager(serviceName, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// SetTimeout sets the timeout for health checks
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// AddChecker adds a health checker
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// AddCheckerFunc adds a health checker function
func (m *Manager) AddCheckerFunc(name string, checkFunc func(ctx context.Context) CheckResult) {
	m.AddChecker(name, CheckerFunc(checkFunc))
}

// Check runs all checks concurrently under one timeout
func (m *Manager) Check(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	var resultsMu sync.Mutex
	dependencies := make(map[string]CheckResult, len(checkers))

	var g errgroup.Group
	for name, checker := range checkers {
		g.Go(func() error {
			start := time.Now()
			result := checker.Check(ctx)
			result.Latency = time.Since(start)
			result.Timestamp = time.Now()

			if result.Status != StatusHealthy {
				m.logger.Warn("Health check not healthy",
					zap.String("dependency", name),
					zap.String("status", result.Status),
					zap.String("error", result.Error))
			}

			resultsMu.Lock()
			dependencies[name] = result
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overallStatus := StatusHealthy
	for _, result := range dependencies {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return HealthResponse{
		Status:       overallStatus,
		Service:      m.serviceName,
		Version:      m.version,
		Uptime:       time.Since(m.startTime),
		Dependencies: dependencies,
		Metadata:     m.getSystemMetadata(),
		Timestamp:    time.Now(),
	}
}

// StatusCode maps an overall status to an HTTP status; degraded stays 200
func StatusCode(status string) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// HTTPHandler returns a HTTP handler for health checks
func (m *Manager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result := m.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(StatusCode(result.Status))
		if err := json.NewEncoder(w).Encode(result); err != nil {
			m.logger.Error("Failed to write health check response", zap.Error(err))
		}
	}
}

func (m *Manager) getSystemMetadata() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"memory_alloc": memStats.Alloc,
		"hostname":     getHostname(),
		"process_id":   os.Getpid(),
	}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// StoreHealthChecker checks a store through its Ping method
func StoreHealthChecker(name string, pingFunc func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := pingFunc(ctx); err != nil {
			return CheckResult{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("%s ping failed: %v", name, err),
			}
		}
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: map[string]interface{}{"store": name},
		}
	})
}

// ExternalServiceHealthChecker checks a remote service. Temporary failures
// are reported as degraded.
func ExternalServiceHealthChecker(name string, checkFunc func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := checkFunc(ctx); err != nil {
			status := StatusUnhealthy
			if isTemporaryError(err) {
				status = StatusDegraded
			}
			return CheckResult{
				Status: status,
				Error:  fmt.Sprintf("external service check failed: %v", err),
			}
		}
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: map[string]interface{}{"service": name},
		}
	})
}

// CircuitBreakerHealthChecker reports an open breaker as degraded
func CircuitBreakerHealthChecker(stats func() resilience.CircuitBreakerStats) Checker {
	return CheckerFunc(func(_ context.Context) CheckResult {
		s := stats()
		status := StatusHealthy
		if s.State != resilience.CircuitClosed.String() {
			status = StatusDegraded
		}
		return CheckResult{
			Status: status,
			Metadata: map[string]interface{}{
				"name":     s.Name,
				"state":    s.State,
				"failures": s.Failures,
			},
		}
	})
}

func isTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var serviceErr *resilience.ServiceError
	if resilience.AsServiceError(err, &serviceErr) {
		return serviceErr.Code == resilience.ErrorCodeTimeout || serviceErr.Code == resilience.ErrorCodeServiceUnavailable
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection refused", "temporary failure", "network is unreachable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
