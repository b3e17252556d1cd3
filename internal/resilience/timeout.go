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
	"time"

	"go.uber.org/zap"
)

// TimeoutFunc is a function that can be executed with a timeout
type TimeoutFunc func(ctx context.Context) error

// WithTimeout runs fn under a deadline of timeout. fn must honour ctx.
// A zero or negative timeout runs fn with the caller's context unchanged.
// Hitting the deadline yields a ServiceError with ErrorCodeTimeout; caller
// cancellation is passed through as is.
func WithTimeout(ctx context.Context, timeout time.Duration, logger *zap.Logger, fn TimeoutFunc) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("Operation timed out", zap.Duration("timeout", timeout))
		return NewTimeoutError("Operation timed out", err)
	}
	return err
}
