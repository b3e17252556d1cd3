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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/gonogo/internal/prompt"
)

type invocation struct {
	templateID string
	input      any
}

// scriptedInvoker answers each template with a canned JSON payload or error.
type scriptedInvoker struct {
	payloads map[string]string
	errs     map[string]error
	calls    []invocation
}

func (s *scriptedInvoker) Invoke(_ context.Context, templateID string, input any, out any) error {
	s.calls = append(s.calls, invocation{templateID: templateID, input: input})
	if err := s.errs[templateID]; err != nil {
		return err
	}
	return json.Unmarshal([]byte(s.payloads[templateID]), out)
}

const chefIdea = "An AI-powered personal chef that suggests recipes based on ingredients you have at home."

func TestAnalyzerAnalyze(t *testing.T) {
	inv := &scriptedInvoker{payloads: map[string]string{
		AnalyzePrompt: `{"feasibility":"High","demand":"Growing","challenges":"Data","suggestions":"Partner with grocers","validationScore":78}`,
	}}
	analyzer := NewAnalyzer(inv, zaptest.NewLogger(t))

	result, err := analyzer.Analyze(context.Background(), chefIdea)
	require.NoError(t, err)

	assert.Equal(t, 78.0, result.ValidationScore)
	assert.Equal(t, "Partner with grocers", result.Suggestions)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, AnalyzeInput{Idea: chefIdea}, inv.calls[0].input)
}

func TestAnalyzerRejectsInvalidIdeaWithoutCall(t *testing.T) {
	inv := &scriptedInvoker{}
	analyzer := NewAnalyzer(inv, zaptest.NewLogger(t))

	_, err := analyzer.Analyze(context.Background(), "short")

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, inv.calls)
}

func TestAnalyzerWrapsFailures(t *testing.T) {
	cause := &prompt.CallError{TemplateID: AnalyzePrompt, Kind: prompt.KindParse, Err: errors.New("not json")}
	inv := &scriptedInvoker{errs: map[string]error{AnalyzePrompt: cause}}
	analyzer := NewAnalyzer(inv, zaptest.NewLogger(t))

	_, err := analyzer.Analyze(context.Background(), chefIdea)

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, AnalysisFailedMessage, UserMessage(err, ""))
	assert.Equal(t, prompt.KindParse, prompt.KindOf(err))
}

func TestEnhancerEnhance(t *testing.T) {
	inv := &scriptedInvoker{payloads: map[string]string{
		EnhancePrompt: `{"enhancedAnalysis":"Trends favour home cooking.","liveDataSources":["Trend related to chef"]}`,
	}}
	enhancer := NewEnhancer(inv, zaptest.NewLogger(t))
	fields := AnalysisFields{Feasibility: "High", Demand: "Growing", Challenges: "Data"}

	result, err := enhancer.Enhance(context.Background(), fields, chefIdea)
	require.NoError(t, err)

	assert.Equal(t, "Trends favour home cooking.", result.EnhancedAnalysis)
	assert.Equal(t, []string{"Trend related to chef"}, result.LiveDataSources)

	require.Len(t, inv.calls, 1)
	input := inv.calls[0].input.(EnhanceInput)
	assert.Equal(t, "Feasibility: High\nDemand: Growing\nChallenges: Data", input.InitialAnalysis)
	assert.Equal(t, ExtractKeywords(chefIdea), input.IdeaKeywords)
}

func TestEnhancerNormalizesMissingSources(t *testing.T) {
	inv := &scriptedInvoker{payloads: map[string]string{
		EnhancePrompt: `{"enhancedAnalysis":"No live data found.","liveDataSources":null}`,
	}}
	enhancer := NewEnhancer(inv, zaptest.NewLogger(t))

	result, err := enhancer.Enhance(context.Background(), AnalysisFields{Feasibility: "ok"}, chefIdea)
	require.NoError(t, err)
	assert.NotNil(t, result.LiveDataSources)
	assert.Empty(t, result.LiveDataSources)
}

func TestEnhancerMissingInput(t *testing.T) {
	inv := &scriptedInvoker{}
	enhancer := NewEnhancer(inv, zaptest.NewLogger(t))

	_, err := enhancer.Enhance(context.Background(), AnalysisFields{}, chefIdea)
	require.Error(t, err)
	assert.Equal(t, MissingEnhancementInputMessage, err.Error())

	_, err = enhancer.Enhance(context.Background(), AnalysisFields{Demand: "x"}, "  ")
	require.Error(t, err)
	assert.Empty(t, inv.calls)
}

func TestEnhancerWrapsFailures(t *testing.T) {
	inv := &scriptedInvoker{errs: map[string]error{EnhancePrompt: errors.New("transport down")}}
	enhancer := NewEnhancer(inv, zaptest.NewLogger(t))

	_, err := enhancer.Enhance(context.Background(), AnalysisFields{Demand: "x"}, chefIdea)

	var enhErr *EnhancementError
	require.ErrorAs(t, err, &enhErr)
	assert.Equal(t, EnhancementFailedMessage, UserMessage(err, ""))
}

func TestScoreGenerator(t *testing.T) {
	inv := &scriptedInvoker{payloads: map[string]string{
		ScorePrompt: `{"validationScore":64,"analysis":{"feasibility":"f","demand":"d","challenges":"c"}}`,
	}}
	scorer := NewScoreGenerator(inv, zaptest.NewLogger(t))

	result, err := scorer.Generate(context.Background(), chefIdea)
	require.NoError(t, err)
	assert.Equal(t, 64.0, result.ValidationScore)
	assert.Equal(t, "d", result.Analysis.Demand)

	_, err = scorer.Generate(context.Background(), "tiny")
	assert.True(t, IsValidation(err))
	assert.Len(t, inv.calls, 1)
}
