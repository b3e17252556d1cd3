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

// Package pipeline models the two-stage analysis flow as a small state
// machine. State values are plain data so they can be persisted with a
// session; Machine drives the stages and reports every transition.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/your-org/gonogo/internal/ideas"
)

// Status is the pipeline position
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusError     Status = "error"
	StatusReady     Status = "ready"
	StatusEnhancing Status = "enhancing"
	StatusEnhanced  Status = "enhanced"
)

// ErrorKind says which step produced State.Error
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindAnalysis    ErrorKind = "analysis"
	ErrorKindEnhancement ErrorKind = "enhancement"
)

var (
	// ErrBusy rejects new work while a stage is in flight
	ErrBusy = errors.New("an analysis is already in progress")
	// ErrNotReady rejects enhancement before an analysis exists
	ErrNotReady = errors.New("no analysis to enhance")
)

// State is a snapshot of one pipeline.
//
// Analysis is set only in Ready, Enhancing and Enhanced. Enhancement is set
// only in Enhanced. Error is set in Error, and in Ready after a failed
// enhancement.
type State struct {
	Status      Status                `json:"status"`
	Idea        string                `json:"idea,omitempty"`
	Analysis    *ideas.AnalysisResult `json:"analysis,omitempty"`
	Enhancement *ideas.EnhancedResult `json:"enhancement,omitempty"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   ErrorKind             `json:"errorKind,omitempty"`
}

// NewState returns an idle pipeline
func NewState() State {
	return State{Status: StatusIdle}
}

// Busy reports whether a stage is in flight
func (s State) Busy() bool {
	return s.Status == StatusPending || s.Status == StatusEnhancing
}

// CanEnhance reports whether Stage 3 may start
func (s State) CanEnhance() bool {
	return s.Status == StatusReady && s.Analysis != nil
}

// Submit starts a new run for idea. Earlier results are discarded. Invalid
// input moves straight to Error without entering Pending.
func (s State) Submit(idea string) (State, error) {
	if s.Busy() {
		return s, ErrBusy
	}
	if _, err := ideas.ValidateIdea(idea); err != nil {
		return State{
			Status:    StatusError,
			Idea:      idea,
			Error:     ideas.UserMessage(err, err.Error()),
			ErrorKind: ErrorKindValidation,
		}, nil
	}
	return State{Status: StatusPending, Idea: idea}, nil
}

// Analyzed records a Stage 1 result
func (s State) Analyzed(result ideas.AnalysisResult) (State, error) {
	if s.Status != StatusPending {
		return s, transitionError(s.Status, StatusReady)
	}
	return State{Status: StatusReady, Idea: s.Idea, Analysis: &result}, nil
}

// BeginEnhance moves Ready to Enhancing. From Enhanced it returns the state
// unchanged so the caller can reuse the existing result.
func (s State) BeginEnhance() (State, error) {
	switch {
	case s.Status == StatusEnhanced:
		return s, nil
	case s.Busy():
		return s, ErrBusy
	case !s.CanEnhance():
		return s, ErrNotReady
	}
	next := s
	next.Status = StatusEnhancing
	next.Error = ""
	next.ErrorKind = ""
	return next, nil
}

// Enhanced records a Stage 3 result
func (s State) Enhanced(result ideas.EnhancedResult) (State, error) {
	if s.Status != StatusEnhancing {
		return s, transitionError(s.Status, StatusEnhanced)
	}
	next := s
	next.Status = StatusEnhanced
	next.Enhancement = &result
	return next, nil
}

// Failed records a stage failure with a display message. A failed analysis
// ends in Error; a failed enhancement returns to Ready with the analysis
// intact.
func (s State) Failed(message string) (State, error) {
	switch s.Status {
	case StatusPending:
		return State{
			Status:    StatusError,
			Idea:      s.Idea,
			Error:     message,
			ErrorKind: ErrorKindAnalysis,
		}, nil
	case StatusEnhancing:
		next := s
		next.Status = StatusReady
		next.Error = message
		next.ErrorKind = ErrorKindEnhancement
		return next, nil
	default:
		return s, transitionError(s.Status, StatusError)
	}
}

func transitionError(from, to Status) error {
	return fmt.Errorf("invalid pipeline transition from %s to %s", from, to)
}
