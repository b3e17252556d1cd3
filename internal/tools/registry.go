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

// Package tools declares the functions the model may call while producing
// an answer and dispatches those calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelCalls bounds concurrent tool handlers within one round
const maxParallelCalls = 4

// Tool is a typed, model-callable function.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Definition

	call func(ctx context.Context, args string) (string, error)
}

// New declares a tool whose arguments decode into In and whose result is
// encoded from Out.
func New[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) (Tool, error) {
	var zero In
	params, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		call: func(ctx context.Context, args string) (string, error) {
			var in In
			if args != "" {
				if err := json.Unmarshal([]byte(args), &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
			}
			out, err := fn(ctx, in)
			if err != nil {
				return "", err
			}
			body, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("encode result: %w", err)
			}
			return string(body), nil
		},
	}, nil
}

// MustNew is New for package-level declarations
func MustNew[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) Tool {
	t, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Definition returns the tool declaration sent to the model
func (t Tool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// Call runs the tool with raw JSON arguments
func (t Tool) Call(ctx context.Context, args string) (string, error) {
	return t.call(ctx, args)
}

// Observer is notified after every tool invocation
type Observer func(name string, duration time.Duration, err error)

type observerKey struct{}

// WithObserver attaches an observer to ctx. Dispatch notifies it in
// addition to the registry-wide observer.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

// Registry holds tools by name
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	observer Observer
	logger   *zap.Logger
}

// NewRegistry creates a registry holding tools
func NewRegistry(logger *zap.Logger, tools ...Tool) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{tools: make(map[string]Tool), logger: logger}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool; names must be unique
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.call == nil {
		return fmt.Errorf("tool must have a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// SetObserver installs the registry-wide observer, e.g. for metrics
func (r *Registry) SetObserver(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

// Names lists registered tools in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns declarations for the named tools
func (r *Registry) Tools(names ...string) ([]openai.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %s", name)
		}
		defs = append(defs, t.Definition())
	}
	return defs, nil
}

// Dispatch runs the calls concurrently and returns one tool message per
// call, in call order. Handler failures are reported back to the model as
// an error payload rather than aborting the exchange.
func (r *Registry) Dispatch(ctx context.Context, calls []openai.ToolCall) []openai.ChatCompletionMessage {
	results := make([]openai.ChatCompletionMessage, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCalls)
	for i, call := range calls {
		g.Go(func() error {
			content := r.invoke(gctx, call.Function.Name, call.Function.Arguments)
			results[i] = openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Registry) invoke(ctx context.Context, name, args string) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	observer := r.observer
	r.mu.RUnlock()

	start := time.Now()
	var (
		content string
		err     error
	)
	if !ok {
		err = fmt.Errorf("unknown tool %s", name)
	} else {
		content, err = t.Call(ctx, args)
	}
	duration := time.Since(start)

	if observer != nil {
		observer(name, duration, err)
	}
	if obs, ok := ctx.Value(observerKey{}).(Observer); ok && obs != nil {
		obs(name, duration, err)
	}

	if err != nil {
		r.logger.Warn("Tool call failed", zap.String("tool", name), zap.Error(err))
		body, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(body)
	}
	r.logger.Debug("Tool call completed",
		zap.String("tool", name),
		zap.Duration("duration", duration))
	return content
}
