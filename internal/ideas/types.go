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

// Package ideas holds the startup idea domain: input validation, keyword
// extraction and the model-backed analysis, enhancement and scoring stages.
package ideas

import (
	"fmt"
	"math"
	"strings"
)

// AnalysisResult is the structured outcome of Stage 1.
type AnalysisResult struct {
	Feasibility     string  `json:"feasibility" description:"An analysis of the feasibility of the idea." validate:"required"`
	Demand          string  `json:"demand" description:"An assessment of the market demand for the idea." validate:"required"`
	Challenges      string  `json:"challenges" description:"Potential challenges and risks associated with the idea." validate:"required"`
	Suggestions     string  `json:"suggestions" description:"Suggestions for improving the idea." validate:"required"`
	ValidationScore float64 `json:"validationScore" description:"A score from 0 to 100 indicating the overall potential of the idea." validate:"gte=0,lte=100"`
}

// Validate rejects blank sections and out of range scores.
func (r AnalysisResult) Validate() error {
	for name, v := range map[string]string{
		"feasibility": r.Feasibility,
		"demand":      r.Demand,
		"challenges":  r.Challenges,
		"suggestions": r.Suggestions,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is empty", name)
		}
	}
	return checkScore(r.ValidationScore)
}

// Fields returns the subset of the analysis that feeds Stage 3.
func (r AnalysisResult) Fields() AnalysisFields {
	return AnalysisFields{
		Feasibility: r.Feasibility,
		Demand:      r.Demand,
		Challenges:  r.Challenges,
	}
}

// AnalysisFields is the analysis subset handed to the enhancer.
type AnalysisFields struct {
	Feasibility string `json:"feasibility"`
	Demand      string `json:"demand"`
	Challenges  string `json:"challenges"`
}

// Empty reports whether every field is blank.
func (f AnalysisFields) Empty() bool {
	return strings.TrimSpace(f.Feasibility) == "" &&
		strings.TrimSpace(f.Demand) == "" &&
		strings.TrimSpace(f.Challenges) == ""
}

// Summary renders the fields as the plain-text block sent to the model.
func (f AnalysisFields) Summary() string {
	return fmt.Sprintf("Feasibility: %s\nDemand: %s\nChallenges: %s", f.Feasibility, f.Demand, f.Challenges)
}

// EnhancedResult is the structured outcome of Stage 3.
type EnhancedResult struct {
	EnhancedAnalysis string   `json:"enhancedAnalysis" description:"The enhanced analysis incorporating live data." validate:"required"`
	LiveDataSources  []string `json:"liveDataSources" description:"A list of the live data sources used for the enhanced analysis."`
}

// Validate rejects an empty narrative. Sources may be empty.
func (r EnhancedResult) Validate() error {
	if strings.TrimSpace(r.EnhancedAnalysis) == "" {
		return fmt.Errorf("enhancedAnalysis is empty")
	}
	return nil
}

// ValidationDetails is the three-part assessment returned with a score.
type ValidationDetails struct {
	Feasibility string `json:"feasibility" description:"Analysis of the feasibility of the idea." validate:"required"`
	Demand      string `json:"demand" description:"Assessment of the market demand for the idea." validate:"required"`
	Challenges  string `json:"challenges" description:"Potential challenges and risks associated with the idea." validate:"required"`
}

// ValidationScoreResult is the outcome of the standalone scoring flow.
type ValidationScoreResult struct {
	ValidationScore float64           `json:"validationScore" description:"A score between 0 and 100 indicating the potential of the idea." validate:"gte=0,lte=100"`
	Analysis        ValidationDetails `json:"analysis" description:"Detailed analysis of the idea."`
}

// Validate rejects blank assessment sections and out of range scores.
func (r ValidationScoreResult) Validate() error {
	if strings.TrimSpace(r.Analysis.Feasibility) == "" ||
		strings.TrimSpace(r.Analysis.Demand) == "" ||
		strings.TrimSpace(r.Analysis.Challenges) == "" {
		return fmt.Errorf("analysis is incomplete")
	}
	return checkScore(r.ValidationScore)
}

func checkScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("validationScore is not a number")
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("validationScore %.2f outside [0, 100]", score)
	}
	return nil
}

// AnalyzeInput is the template input for Stage 1.
type AnalyzeInput struct {
	Idea string `json:"idea"`
}

// EnhanceInput is the template input for Stage 3.
type EnhanceInput struct {
	InitialAnalysis string   `json:"initialAnalysis"`
	IdeaKeywords    []string `json:"ideaKeywords"`
}

// ScoreInput is the template input for the scoring flow.
type ScoreInput struct {
	Idea string `json:"idea"`
}
