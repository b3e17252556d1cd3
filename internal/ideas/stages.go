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
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/prompt"
)

// Prompt template identifiers.
const (
	AnalyzePrompt = "analyzeStartupIdea"
	EnhancePrompt = "enhanceAnalysisWithLiveData"
	ScorePrompt   = "generateValidationScore"
)

// Analyzer runs Stage 1.
type Analyzer struct {
	invoker prompt.Invoker
	logger  *zap.Logger
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(invoker prompt.Invoker, logger *zap.Logger) *Analyzer {
	return &Analyzer{invoker: invoker, logger: logger}
}

// Analyze validates the idea and asks the model for a structured analysis.
// Invalid input returns a *ValidationError without calling the model; any
// other failure is reported as *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, idea string) (AnalysisResult, error) {
	if _, err := ValidateIdea(idea); err != nil {
		return AnalysisResult{}, err
	}

	result, err := prompt.Call[AnalysisResult](ctx, a.invoker, AnalyzePrompt, AnalyzeInput{Idea: idea})
	if err != nil {
		a.logger.Error("Idea analysis failed",
			zap.Int("idea_length", utf8.RuneCountInString(idea)),
			zap.Error(err))
		return AnalysisResult{}, &AnalysisError{Err: err}
	}

	a.logger.Info("Idea analyzed",
		zap.Float64("validation_score", result.ValidationScore))
	return result, nil
}

// Enhancer runs Stage 3.
type Enhancer struct {
	invoker prompt.Invoker
	logger  *zap.Logger
}

// NewEnhancer creates an Enhancer
func NewEnhancer(invoker prompt.Invoker, logger *zap.Logger) *Enhancer {
	return &Enhancer{invoker: invoker, logger: logger}
}

// Enhance enriches an earlier analysis with live data. Keywords are taken
// from the idea text; the model may call the market trend and news tools.
func (e *Enhancer) Enhance(ctx context.Context, fields AnalysisFields, idea string) (EnhancedResult, error) {
	if fields.Empty() || strings.TrimSpace(idea) == "" {
		return EnhancedResult{}, &ValidationError{Field: "analysis", Message: MissingEnhancementInputMessage}
	}

	keywords := ExtractKeywords(idea)
	input := EnhanceInput{
		InitialAnalysis: fields.Summary(),
		IdeaKeywords:    keywords,
	}

	result, err := prompt.Call[EnhancedResult](ctx, e.invoker, EnhancePrompt, input)
	if err != nil {
		e.logger.Error("Analysis enhancement failed",
			zap.Strings("keywords", keywords),
			zap.Error(err))
		return EnhancedResult{}, &EnhancementError{Err: err}
	}
	if result.LiveDataSources == nil {
		result.LiveDataSources = []string{}
	}

	e.logger.Info("Analysis enhanced",
		zap.Strings("keywords", keywords),
		zap.Int("sources", len(result.LiveDataSources)))
	return result, nil
}

// ScoreGenerator runs the standalone scoring flow.
type ScoreGenerator struct {
	invoker prompt.Invoker
	logger  *zap.Logger
}

func NewScoreGenerator(invoker prompt.Invoker, logger *zap.Logger) *ScoreGenerator {
	return &ScoreGenerator{invoker: invoker, logger: logger}
}

// Generate returns a score plus a three-part assessment for the idea.
func (g *ScoreGenerator) Generate(ctx context.Context, idea string) (ValidationScoreResult, error) {
	if _, err := ValidateIdea(idea); err != nil {
		return ValidationScoreResult{}, err
	}

	result, err := prompt.Call[ValidationScoreResult](ctx, g.invoker, ScorePrompt, ScoreInput{Idea: idea})
	if err != nil {
		g.logger.Error("Validation scoring failed", zap.Error(err))
		return ValidationScoreResult{}, &ScoreError{Err: err}
	}
	return result, nil
}
