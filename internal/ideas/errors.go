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

package ideas

import (
	"errors"
	"fmt"
)

// User-facing messages. Failure details stay in the logs.
const (
	AnalysisFailedMessage          = "Failed to analyze the idea. Please try again."
	EnhancementFailedMessage       = "Failed to enhance the analysis with live data. Please try again."
	MissingEnhancementInputMessage = "Missing initial analysis or idea for enhancement."
	ScoreFailedMessage             = "Failed to generate a validation score. Please try again."
)

// UserFacing is implemented by errors that carry a message safe to show.
type UserFacing interface {
	UserMessage() string
}

// ValidationError is an input rejection that never reached the model.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string       { return e.Message }
func (e *ValidationError) UserMessage() string { return e.Message }

// AnalysisError wraps any Stage 1 failure.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string       { return fmt.Sprintf("analysis failed: %v", e.Err) }
func (e *AnalysisError) Unwrap() error       { return e.Err }
func (e *AnalysisError) UserMessage() string { return AnalysisFailedMessage }

// EnhancementError wraps any Stage 3 failure.
type EnhancementError struct {
	Err error
}

func (e *EnhancementError) Error() string       { return fmt.Sprintf("enhancement failed: %v", e.Err) }
func (e *EnhancementError) Unwrap() error       { return e.Err }
func (e *EnhancementError) UserMessage() string { return EnhancementFailedMessage }

// ScoreError wraps any scoring flow failure.
type ScoreError struct {
	Err error
}

func (e *ScoreError) Error() string       { return fmt.Sprintf("scoring failed: %v", e.Err) }
func (e *ScoreError) Unwrap() error       { return e.Err }
func (e *ScoreError) UserMessage() string { return ScoreFailedMessage }

// UserMessage returns the display message for err, falling back to fallback
// for errors that do not carry one.
func UserMessage(err error, fallback string) string {
	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	return fallback
}

// IsValidation reports whether err is an input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
