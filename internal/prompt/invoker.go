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

package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	llm "github.com/your-org/gonogo/internal/openai"
)

const (
	// DefaultMaxToolRounds bounds the tool-call exchange per invocation
	DefaultMaxToolRounds = 5

	ResponseFormatJSONSchema = "json_schema"
	ResponseFormatJSONObject = "json_object"
)

// Invoker runs a named template against input and decodes the structured
// result into out, which must be a non-nil pointer.
type Invoker interface {
	Invoke(ctx context.Context, templateID string, input any, out any) error
}

// Call is the typed form of Invoker.Invoke.
func Call[Out any](ctx context.Context, inv Invoker, templateID string, input any) (Out, error) {
	var out Out
	if err := inv.Invoke(ctx, templateID, input, &out); err != nil {
		var zero Out
		return zero, err
	}
	return out, nil
}

// ChatClient is the transport used by ModelInvoker
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

// ToolSet resolves tool declarations and executes tool calls.
type ToolSet interface {
	Tools(names ...string) ([]openai.Tool, error)
	Dispatch(ctx context.Context, calls []openai.ToolCall) []openai.ChatCompletionMessage
}

// CallSettings overrides a template's sampling settings
type CallSettings struct {
	Temperature *float32
	MaxTokens   int
}

// InvokerConfig configures a ModelInvoker
type InvokerConfig struct {
	Model          string
	MaxToolRounds  int
	ResponseFormat string
	Overrides      map[string]CallSettings
}

// ModelInvoker implements Invoker on top of a chat completion endpoint.
type ModelInvoker struct {
	client    ChatClient
	templates *Registry
	tools     ToolSet
	config    InvokerConfig
	logger    *zap.Logger
}

// NewModelInvoker creates a ModelInvoker. tools may be nil when no
// template declares tools.
func NewModelInvoker(client ChatClient, templates *Registry, tools ToolSet, config InvokerConfig, logger *zap.Logger) *ModelInvoker {
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = DefaultMaxToolRounds
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = ResponseFormatJSONSchema
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelInvoker{
		client:    client,
		templates: templates,
		tools:     tools,
		config:    config,
		logger:    logger,
	}
}

// Invoke renders the template, runs the tool loop and decodes the answer.
func (m *ModelInvoker) Invoke(ctx context.Context, templateID string, input any, out any) error {
	fail := func(kind ErrorKind, err error) error {
		return &CallError{TemplateID: templateID, Kind: kind, Err: err}
	}

	def, err := m.templates.Get(templateID)
	if err != nil {
		return fail(KindTemplate, err)
	}
	userPrompt, err := def.Render(input)
	if err != nil {
		return fail(KindTemplate, err)
	}
	schema, err := SchemaFor(out)
	if err != nil {
		return fail(KindSchema, err)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fail(KindSchema, err)
	}

	var tools []openai.Tool
	if len(def.Tools) > 0 {
		if m.tools == nil {
			return fail(KindTemplate, fmt.Errorf("template declares tools but no tool set is configured"))
		}
		if tools, err = m.tools.Tools(def.Tools...); err != nil {
			return fail(KindTemplate, err)
		}
	}

	system := "Respond only with a JSON object that conforms to this JSON schema:\n" + string(schemaJSON)
	if def.System != "" {
		system = def.System + "\n\n" + system
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	req := llm.ChatCompletionRequest{
		Model:          m.config.Model,
		MaxTokens:      def.MaxTokens,
		Tools:          tools,
		ResponseFormat: m.responseFormat(templateID, schema),
	}
	if def.Temperature != nil {
		req.Temperature = *def.Temperature
	}
	if override, ok := m.config.Overrides[templateID]; ok {
		if override.Temperature != nil {
			req.Temperature = *override.Temperature
		}
		if override.MaxTokens > 0 {
			req.MaxTokens = override.MaxTokens
		}
	}

	start := time.Now()
	for round := 0; ; round++ {
		req.Messages = messages
		resp, err := m.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fail(KindTransport, err)
		}

		if len(resp.ToolCalls) == 0 {
			if kind, err := decodeOutput(resp.Content, schema, out); err != nil {
				m.logger.Warn("Model output rejected",
					zap.String("template", templateID),
					zap.String("kind", string(kind)),
					zap.Error(err))
				return fail(kind, err)
			}
			m.logger.Debug("Prompt completed",
				zap.String("template", templateID),
				zap.Int("tool_rounds", round),
				zap.Duration("duration", time.Since(start)))
			return nil
		}

		if round >= m.config.MaxToolRounds {
			return fail(KindToolLoop, fmt.Errorf("model still requested tools after %d rounds", round))
		}
		if m.tools == nil || len(tools) == 0 {
			return fail(KindToolLoop, fmt.Errorf("model requested tools that were not offered"))
		}

		m.logger.Debug("Dispatching tool calls",
			zap.String("template", templateID),
			zap.Int("round", round+1),
			zap.Int("calls", len(resp.ToolCalls)))

		assistant := resp.Message
		assistant.Role = openai.ChatMessageRoleAssistant
		messages = append(messages, assistant)
		messages = append(messages, m.tools.Dispatch(ctx, resp.ToolCalls)...)
	}
}

func (m *ModelInvoker) responseFormat(templateID string, schema json.Marshaler) *openai.ChatCompletionResponseFormat {
	if m.config.ResponseFormat == ResponseFormatJSONObject {
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   templateID,
			Schema: schema,
		},
	}
}
