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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/feedback"
	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/orchestrator"
	"github.com/your-org/gonogo/internal/pipeline"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/session"
)

const pageTitle = "Go/No-Go: Startup Idea Validator"

// pageView is the data behind both HTML pages
type pageView struct {
	Title        string
	FormAction   string
	SessionID    string
	Idea         string
	Status       pipeline.Status
	Analysis     *ideas.AnalysisResult
	Enhancement  *ideas.EnhancedResult
	Error        string
	FieldError   string
	CanEnhance   bool
	Busy         bool
	FeedbackSent bool
	MinLength    int
	MaxLength    int
}

func newPageView() pageView {
	return pageView{
		Title:      pageTitle,
		FormAction: "/",
		MinLength:  ideas.MinIdeaLength,
		MaxLength:  ideas.MaxIdeaLength,
	}
}

func newSessionView(sess *session.Session) pageView {
	view := newPageView()
	state := sess.Pipeline
	view.Title = sess.Title + " | " + pageTitle
	view.FormAction = "/s/" + sess.ID
	view.SessionID = sess.ID
	view.Idea = state.Idea
	view.Status = state.Status
	view.Analysis = state.Analysis
	view.Enhancement = state.Enhancement
	view.CanEnhance = state.CanEnhance()
	view.Busy = state.Busy()
	if state.ErrorKind == pipeline.ErrorKindValidation {
		view.FieldError = state.Error
	} else {
		view.Error = state.Error
	}
	return view
}

// handleHomePage serves the idea form
func (s *Server) handleHomePage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", newPageView())
}

// handleSubmitPage starts a session for the posted idea
func (s *Server) handleSubmitPage(c *gin.Context) {
	idea := c.PostForm("idea")
	sess, err := s.orchestrator.CreateSession(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		view := newPageView()
		view.Idea = idea
		view.Error = sessionFailedMessage
		c.HTML(http.StatusInternalServerError, "index.html", view)
		return
	}
	s.submitPage(c, sess.ID, idea)
}

// handleResubmitPage runs a new idea in an existing session
func (s *Server) handleResubmitPage(c *gin.Context) {
	s.submitPage(c, c.Param("id"), c.PostForm("idea"))
}

func (s *Server) submitPage(c *gin.Context, sessionID, idea string) {
	if _, err := s.orchestrator.Submit(c.Request.Context(), sessionID, idea); err != nil {
		s.renderRejected(c, sessionID, orchestrator.Classify(err, ideas.AnalysisFailedMessage))
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+sessionID)
}

// handleSessionPage renders a session's pipeline
func (s *Server) handleSessionPage(c *gin.Context) {
	sess, err := s.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderRejected(c, "", orchestrator.Classify(err, sessionFailedMessage))
		return
	}
	view := newSessionView(sess)
	view.FeedbackSent = c.Query("feedback") == "sent"
	c.HTML(http.StatusOK, "session.html", view)
}

func (s *Server) handleEnhancePage(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := s.orchestrator.EnhanceSession(c.Request.Context(), sessionID); err != nil {
		s.renderRejected(c, sessionID, orchestrator.Classify(err, ideas.EnhancementFailedMessage))
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+sessionID)
}

func (s *Server) handleFeedbackPage(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := s.orchestrator.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		s.renderRejected(c, "", orchestrator.Classify(err, sessionFailedMessage))
		return
	}

	req := FeedbackRequest{
		SessionID: sessionID,
		Rating:    feedback.Rating(c.PostForm("rating")),
		Comment:   c.PostForm("comment"),
	}
	if sess.Pipeline.Analysis != nil {
		req.ValidationScore = sess.Pipeline.Analysis.ValidationScore
	}
	if _, serviceErr := s.recordFeedback(c, req); serviceErr != nil {
		view := newSessionView(sess)
		view.Error = serviceErr.Message
		c.HTML(serviceErr.StatusCode, "session.html", view)
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+sessionID+"?feedback=sent")
}

// renderRejected shows a rejected request on the session page when the
// session can be loaded, otherwise on the home page
func (s *Server) renderRejected(c *gin.Context, sessionID string, serviceErr *resilience.ServiceError) {
	if sessionID != "" {
		if sess, err := s.orchestrator.GetSession(c.Request.Context(), sessionID); err == nil {
			view := newSessionView(sess)
			view.Error = serviceErr.Message
			c.HTML(serviceErr.StatusCode, "session.html", view)
			return
		}
	}
	view := newPageView()
	view.Error = serviceErr.Message
	c.HTML(serviceErr.StatusCode, "index.html", view)
}
