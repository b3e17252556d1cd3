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

// Package openai is the transport to an OpenAI-compatible chat completion
// endpoint, guarded by retries, a circuit breaker and per-attempt timeouts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/resilience"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = openai.GPT4oMini
	// DefaultRequestTimeout bounds a single completion attempt
	DefaultRequestTimeout = 60 * time.Second
)

// Config holds the transport settings
type Config struct {
	APIKey         string
	Endpoint       string
	Model          string
	MaxRetries     int
	RequestTimeout time.Duration
	Breaker        resilience.CircuitBreakerConfig
}

// Client wraps the go-openai client with retry and breaker handling
type Client struct {
	client  *openai.Client
	logger  *zap.Logger
	model   string
	timeout time.Duration
	backoff resilience.BackoffConfig
	breaker *resilience.CircuitBreaker
}

// RetryableError represents an error that can be retried
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the configured endpoint. It does not
// contact the endpoint; use Ping for that.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	breakerConfig := cfg.Breaker
	if breakerConfig.Name == "" {
		breakerConfig = resilience.DefaultCircuitBreakerConfig("openai")
	}

	backoff := resilience.DefaultBackoffConfig(cfg.MaxRetries)
	backoff.RetryOnFunc = isRetryable

	c := &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		logger:  logger,
		model:   model,
		timeout: timeout,
		backoff: backoff,
		breaker: resilience.NewCircuitBreaker(breakerConfig, logger),
	}

	logger.Info("OpenAI client initialized",
		zap.String("model", model),
		zap.String("endpoint", clientConfig.BaseURL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("request_timeout", timeout))

	return c, nil
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.model
}

// BreakerStats exposes the breaker for health output
func (c *Client) BreakerStats() resilience.CircuitBreakerStats {
	return c.breaker.GetStats()
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Messages       []openai.ChatCompletionMessage
	MaxTokens      int
	Temperature    float32
	Model          string
	Tools          []openai.Tool
	ResponseFormat *openai.ChatCompletionResponseFormat
}

// ChatCompletionResponse represents the response from a chat completion
type ChatCompletionResponse struct {
	Message      openai.ChatCompletionMessage
	Content      string
	ToolCalls    []openai.ToolCall
	FinishReason string
	Usage        openai.Usage
}

// CreateChatCompletion sends one completion request through the breaker,
// retrying transient failures.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:          req.Model,
		Messages:       req.Messages,
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		Tools:          req.Tools,
		ResponseFormat: req.ResponseFormat,
	}

	c.logger.Debug("Creating chat completion",
		zap.String("model", req.Model),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Int("message_count", len(req.Messages)),
		zap.Int("tool_count", len(req.Tools)))

	var resp openai.ChatCompletionResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithExponentialBackoff(ctx, c.logger, c.backoff, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, c.timeout, c.logger, func(ctx context.Context) error {
				var err error
				resp, err = c.client.CreateChatCompletion(ctx, openaiReq)
				if err != nil {
					return c.handleAPIError(err)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}
	choice := resp.Choices[0]

	c.logger.Debug("Chat completion successful",
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("tool_calls", len(choice.Message.ToolCalls)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &ChatCompletionResponse{
		Message:      choice.Message,
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: string(choice.FinishReason),
		Usage:        resp.Usage,
	}, nil
}

// Ping checks that the endpoint answers a model listing.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return c.handleAPIError(err)
	}
	return nil
}

// handleAPIError maps API errors onto retryable and terminal errors
func (c *Client) handleAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		default:
			return fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= http.StatusInternalServerError {
		return &RetryableError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return fmt.Errorf("OpenAI client error: %w", err)
}

// isRetryable retries rate limits, server errors and per-attempt timeouts.
func isRetryable(err error) bool {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return true
	}
	var serviceErr *resilience.ServiceError
	return resilience.AsServiceError(err, &serviceErr) && serviceErr.Code == resilience.ErrorCodeTimeout
}
