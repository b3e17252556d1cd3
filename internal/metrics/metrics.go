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

// Package metrics exposes Prometheus counters and histograms for pipeline
// stages, tool calls, feedback and HTTP traffic. Every method is safe on a
// nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gonogo"

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	stageCalls    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	feedbackTotal *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates collectors on a private registry, including Go runtime and
// process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_calls_total",
				Help:      "Total number of pipeline stage calls",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stage calls",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"stage"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of model-invoked tool calls",
			},
			[]string{"tool", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of model-invoked tool calls",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 10, 6),
			},
			[]string{"tool"},
		),
		feedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "Total number of feedback submissions",
			},
			[]string{"rating"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.stageCalls,
		m.stageDuration,
		m.toolCalls,
		m.toolDuration,
		m.feedbackTotal,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStage records one stage call
func (m *Metrics) ObserveStage(stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageCalls.WithLabelValues(stage, status(err)).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveTool records one tool call. Its signature matches tools.Observer.
func (m *Metrics) ObserveTool(name string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name, status(err)).Inc()
	m.toolDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// ObserveFeedback counts one feedback submission
func (m *Metrics) ObserveFeedback(rating string) {
	if m == nil {
		return
	}
	m.feedbackTotal.WithLabelValues(rating).Inc()
}

// RegisterGauge exposes a value read at scrape time
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
		fn,
	))
}

// GinMiddleware records request counts and latencies by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
