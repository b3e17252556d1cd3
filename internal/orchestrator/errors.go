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

package orchestrator

import (
	"errors"

	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/pipeline"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/session"
)

// User-facing messages for rejected requests
const (
	BusyMessage            = "An analysis is already in progress. Please wait for it to finish."
	NotReadyMessage        = "Analyze an idea before enhancing it."
	SessionNotFoundMessage = "Session not found or expired."
	StaleRunMessage        = "The previous run did not finish. Please try again."
)

var errScoringDisabled = errors.New("scoring is not configured")

// Classify maps err to a ServiceError for HTTP responses. fallback is the
// message used for stage and dependency failures.
func Classify(err error, fallback string) *resilience.ServiceError {
	switch {
	case ideas.IsValidation(err):
		return resilience.NewBadRequestError(ideas.UserMessage(err, fallback), err)
	case errors.Is(err, pipeline.ErrBusy):
		return resilience.NewConflictError(BusyMessage, err)
	case errors.Is(err, pipeline.ErrNotReady):
		return resilience.NewConflictError(NotReadyMessage, err)
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		return resilience.NewNotFoundError(SessionNotFoundMessage, err)
	default:
		return resilience.DependencyError(ideas.UserMessage(err, fallback), err)
	}
}
