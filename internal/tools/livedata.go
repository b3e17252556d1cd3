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

package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/ideas"
)

// Tool names as referenced by prompt templates
const (
	MarketTrendsTool  = "getMarketTrends"
	NewsTool          = "getNews"
	AnalyzeIdeaTool   = "analyzeIdea"
	ShouldAnalyzeTool = "shouldAnalyzeIdea"
)

// MarketTrendsInput is the argument object for getMarketTrends
type MarketTrendsInput struct {
	Keywords []string `json:"keywords" description:"Keywords to search for market trends."`
}

// NewsInput is the argument object for getNews
type NewsInput struct {
	Keywords []string `json:"keywords" description:"Keywords to search for news articles."`
}

// AnalyzeIdeaInput is the argument object for analyzeIdea
type AnalyzeIdeaInput struct {
	Idea string `json:"idea" description:"The startup idea to analyze."`
}

// ShouldAnalyzeIdeaInput is the argument object for shouldAnalyzeIdea
type ShouldAnalyzeIdeaInput struct {
	Idea  string `json:"idea" description:"The startup idea."`
	Topic string `json:"topic" description:"The topic the idea should be analyzed for."`
}

// MarketTrends returns one trend line per keyword. Placeholder data until a
// trends provider is wired in.
func MarketTrends(_ context.Context, in MarketTrendsInput) ([]string, error) {
	trends := make([]string, 0, len(in.Keywords))
	for _, kw := range in.Keywords {
		trends = append(trends, "Trend related to "+kw)
	}
	return trends, nil
}

// News returns one headline per keyword. Placeholder data.
func News(_ context.Context, in NewsInput) ([]string, error) {
	articles := make([]string, 0, len(in.Keywords))
	for _, kw := range in.Keywords {
		articles = append(articles, "News article about "+kw)
	}
	return articles, nil
}

// AnalyzeIdea returns a placeholder three-part assessment.
func AnalyzeIdea(_ context.Context, in AnalyzeIdeaInput) (ideas.ValidationDetails, error) {
	return ideas.ValidationDetails{
		Feasibility: "Feasibility analysis for: " + in.Idea + " (Placeholder)",
		Demand:      "Demand assessment for: " + in.Idea + " (Placeholder)",
		Challenges:  "Challenges and risks for: " + in.Idea + " (Placeholder)",
	}, nil
}

// ShouldAnalyzeIdea lets the model ask whether an idea is worth a detailed
// analysis for a topic. Always true until a topic filter exists.
func ShouldAnalyzeIdea(_ context.Context, _ ShouldAnalyzeIdeaInput) (bool, error) {
	return true, nil
}

// LiveData returns the enhancement tools
func LiveData() []Tool {
	return []Tool{
		MustNew(MarketTrendsTool, "Retrieves the latest market trends related to the given keywords.", MarketTrends),
		MustNew(NewsTool, "Retrieves recent news articles related to the given keywords.", News),
	}
}

// Validation returns the scoring flow tools
func Validation() []Tool {
	return []Tool{
		MustNew(AnalyzeIdeaTool, "Analyzes the startup idea and provides feedback on its feasibility, demand, and potential challenges.", AnalyzeIdea),
		MustNew(ShouldAnalyzeTool, "Decides whether the startup idea should be analyzed in detail for the given topic.", ShouldAnalyzeIdea),
	}
}

// NewDefaultRegistry registers every built-in tool
func NewDefaultRegistry(logger *zap.Logger) (*Registry, error) {
	all := append(LiveData(), Validation()...)
	return NewRegistry(logger, all...)
}
