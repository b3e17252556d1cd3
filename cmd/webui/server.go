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
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/feedback"
	"github.com/your-org/gonogo/internal/health"
	"github.com/your-org/gonogo/internal/metrics"
	"github.com/your-org/gonogo/internal/orchestrator"
	"github.com/your-org/gonogo/internal/render"
	"github.com/your-org/gonogo/internal/resilience"
	"github.com/your-org/gonogo/internal/streaming"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server holds the handlers' collaborators
type Server struct {
	orchestrator *orchestrator.Orchestrator
	feedback     *feedback.Logger
	streams      *streaming.StreamManager
	metrics      *metrics.Metrics
	health       *health.Manager
	metricsPath  string
	logger       *zap.Logger
}

// ServerDeps are the services a Server needs. Feedback, Metrics and
// Health may be nil.
type ServerDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Feedback     *feedback.Logger
	Streams      *streaming.StreamManager
	Metrics      *metrics.Metrics
	Health       *health.Manager
	MetricsPath  string
	Logger       *zap.Logger
}

// NewServer creates a Server
func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		orchestrator: deps.Orchestrator,
		feedback:     deps.Feedback,
		streams:      deps.Streams,
		metrics:      deps.Metrics,
		health:       deps.Health,
		metricsPath:  deps.MetricsPath,
		logger:       deps.Logger,
	}
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(render.FuncMap()).ParseFS(templateFS, "templates/*.html")
}

// Router builds the gin engine with every route
func (s *Server) Router() (*gin.Engine, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(s.metrics.GinMiddleware())
	router.SetHTMLTemplate(tmpl)

	// Pages
	router.GET("/", s.handleHomePage)
	router.POST("/", s.handleSubmitPage)
	router.GET("/s/:id", s.handleSessionPage)
	router.POST("/s/:id", s.handleResubmitPage)
	router.POST("/s/:id/enhance", s.handleEnhancePage)
	router.POST("/s/:id/feedback", s.handleFeedbackPage)

	// Stateless actions
	api := router.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/enhance", s.handleEnhance)
	api.POST("/score", s.handleScore)

	// Session pipeline
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/submit", s.handleSubmitSession)
	api.POST("/sessions/:id/enhance", s.handleEnhanceSession)
	api.GET("/sessions/:id/events", s.handleSessionEvents)

	api.POST("/feedback", s.handleFeedback)
	api.GET("/feedback/stats", s.handleFeedbackStats)

	router.GET("/health", s.handleHealth)
	if s.metricsPath != "" {
		router.GET(s.metricsPath, gin.WrapH(s.metrics.Handler()))
	}

	return router, nil
}

// handleHealth returns the health status
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	s.health.HTTPHandler().ServeHTTP(c.Writer, c.Request)
}

// envelope is the {error, data} body of every JSON response
type envelope struct {
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Data: data})
}

func respondError(c *gin.Context, serviceErr *resilience.ServiceError) {
	message := serviceErr.Message
	c.JSON(serviceErr.StatusCode, envelope{Error: &message})
}
