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

package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/feedback"
	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/orchestrator"
	"github.com/your-org/gonogo/internal/resilience"
)

const (
	invalidRequestMessage   = "Invalid request format."
	sessionFailedMessage    = "Failed to create a session. Please try again."
	feedbackFailedMessage   = "Failed to record feedback. Please try again."
	feedbackDisabledMessage = "Feedback is not enabled."
)

// IdeaRequest carries a submitted idea
type IdeaRequest struct {
	Idea string `json:"idea" form:"idea"`
}

// EnhanceRequest carries a prior analysis and the idea it was made for
type EnhanceRequest struct {
	Analysis ideas.AnalysisFields `json:"analysis"`
	Idea     string               `json:"idea"`
}

// FeedbackRequest is a rating for one validation
type FeedbackRequest struct {
	SessionID       string          `json:"session_id"`
	ValidationScore float64         `json:"validation_score"`
	Rating          feedback.Rating `json:"rating"`
	Comment         string          `json:"comment"`
}

// writeAction sends an action result with the status of its failure
func writeAction[T any](s *Server, c *gin.Context, result orchestrator.ActionResult[T], fallback string) {
	if result.OK() {
		c.JSON(http.StatusOK, result)
		return
	}
	serviceErr := orchestrator.Classify(result.Err, fallback)
	s.logger.Warn("Action failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", serviceErr.StatusCode),
		zap.Error(result.Err))
	c.JSON(serviceErr.StatusCode, result)
}

// handleAnalyze runs Stage 1 without a session
func (s *Server) handleAnalyze(c *gin.Context) {
	var req IdeaRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, resilience.NewBadRequestError(invalidRequestMessage, err))
		return
	}
	writeAction(s, c, s.orchestrator.Analyze(c.Request.Context(), req.Idea), ideas.AnalysisFailedMessage)
}

// handleEnhance runs Stage 3 on an analysis supplied by the client
func (s *Server) handleEnhance(c *gin.Context) {
	var req EnhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, resilience.NewBadRequestError(invalidRequestMessage, err))
		return
	}
	writeAction(s, c, s.orchestrator.Enhance(c.Request.Context(), req.Analysis, req.Idea), ideas.EnhancementFailedMessage)
}

// handleScore runs the standalone scoring flow
func (s *Server) handleScore(c *gin.Context) {
	var req IdeaRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, resilience.NewBadRequestError(invalidRequestMessage, err))
		return
	}
	writeAction(s, c, s.orchestrator.Score(c.Request.Context(), req.Idea), ideas.ScoreFailedMessage)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.orchestrator.CreateSession(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		respondError(c, resilience.NewInternalError(sessionFailedMessage, err))
		return
	}
	respond(c, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, orchestrator.Classify(err, sessionFailedMessage))
		return
	}
	respond(c, http.StatusOK, sess)
}

// handleSubmitSession runs a new idea through the session's pipeline. A
// failed stage is reported in the returned pipeline, not as an HTTP error.
func (s *Server) handleSubmitSession(c *gin.Context) {
	var req IdeaRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, resilience.NewBadRequestError(invalidRequestMessage, err))
		return
	}
	sess, err := s.orchestrator.Submit(c.Request.Context(), c.Param("id"), req.Idea)
	if err != nil {
		respondError(c, orchestrator.Classify(err, ideas.AnalysisFailedMessage))
		return
	}
	respond(c, http.StatusOK, sess)
}

func (s *Server) handleEnhanceSession(c *gin.Context) {
	sess, err := s.orchestrator.EnhanceSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, orchestrator.Classify(err, ideas.EnhancementFailedMessage))
		return
	}
	respond(c, http.StatusOK, sess)
}

// handleSessionEvents streams the progress of the session's latest
// operation as Server-Sent Events. Past events are replayed first; the
// response ends after the final event or when the client goes away.
func (s *Server) handleSessionEvents(c *gin.Context) {
	sessionID := c.Param("id")
	stream, ok := s.streams.GetStream(sessionID)
	if !ok {
		if _, err := s.orchestrator.GetSession(c.Request.Context(), sessionID); err != nil {
			respondError(c, orchestrator.Classify(err, sessionFailedMessage))
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	past, events, cancel := stream.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for _, event := range past {
		if _, err := io.WriteString(c.Writer, event.ToSSEMessage()); err != nil {
			return
		}
		if event.Final() {
			c.Writer.Flush()
			return
		}
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if _, err := io.WriteString(c.Writer, event.ToSSEMessage()); err != nil {
				return
			}
			c.Writer.Flush()
			if event.Final() {
				return
			}
		}
	}
}

// recordFeedback stores a rating and counts it
func (s *Server) recordFeedback(c *gin.Context, req FeedbackRequest) (feedback.Record, *resilience.ServiceError) {
	if s.feedback == nil {
		return feedback.Record{}, resilience.NewServiceUnavailableError(feedbackDisabledMessage, nil)
	}
	record, err := s.feedback.Record(c.Request.Context(), feedback.Record{
		SessionID:       req.SessionID,
		ValidationScore: req.ValidationScore,
		Rating:          req.Rating,
		Comment:         req.Comment,
	})
	switch {
	case errors.Is(err, feedback.ErrInvalidRating), errors.Is(err, feedback.ErrCommentTooLong):
		return feedback.Record{}, resilience.NewBadRequestError(err.Error(), err)
	case err != nil:
		s.logger.Error("Failed to record feedback", zap.Error(err))
		return feedback.Record{}, resilience.NewInternalError(feedbackFailedMessage, err)
	}
	s.metrics.ObserveFeedback(string(record.Rating))
	return record, nil
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, resilience.NewBadRequestError(invalidRequestMessage, err))
		return
	}
	record, serviceErr := s.recordFeedback(c, req)
	if serviceErr != nil {
		respondError(c, serviceErr)
		return
	}
	respond(c, http.StatusCreated, record)
}

func (s *Server) handleFeedbackStats(c *gin.Context) {
	if s.feedback == nil {
		respondError(c, resilience.NewServiceUnavailableError(feedbackDisabledMessage, nil))
		return
	}
	stats, err := s.feedback.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to read feedback stats", zap.Error(err))
		respondError(c, resilience.NewInternalError(feedbackFailedMessage, err))
		return
	}
	respond(c, http.StatusOK, stats)
}
