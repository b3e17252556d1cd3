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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdea(t *testing.T) {
	tests := []struct {
		name    string
		idea    string
		wantErr string
	}{
		{"too short", "too short", tooShortMessage},
		{"empty", "", tooShortMessage},
		{"minimum length", "ten chars!", ""},
		{"maximum length", strings.Repeat("a", MaxIdeaLength), ""},
		{"too long", strings.Repeat("a", MaxIdeaLength+1), tooLongMessage},
		{"multibyte counted as characters", strings.Repeat("é", 10), ""},
		{"nine multibyte characters", strings.Repeat("é", 9), tooShortMessage},
		{"whitespace counts", "          ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateIdea(tt.idea)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.idea, got)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.wantErr, UserMessage(err, "fallback"))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "hyphenated words are joined",
			text: "An AI-powered personal chef that suggests recipes based on ingredients you have at home.",
			want: []string{"aipowered", "personal", "chef", "suggests", "recipes", "based", "ingredients", "have", "home"},
		},
		{
			name: "stop words and short tokens only",
			text: "The app is an app",
			want: []string{},
		},
		{
			name: "capped at ten",
			text: "alpha beta gamma delta epsilon zeta theta iota kappa lambda omicron",
			want: []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta", "iota", "kappa", "lambda"},
		},
		{
			name: "duplicates kept",
			text: "coffee, coffee and more coffee",
			want: []string{"coffee", "coffee", "more", "coffee"},
		},
		{
			name: "non-ASCII letters removed",
			text: "Café naïve résumé",
			want: []string{"caf", "nave", "rsum"},
		},
		{
			name: "digits and underscores kept",
			text: "A web3 tool_kit for 2024",
			want: []string{"web3", "tool_kit", "2024"},
		},
		{
			name: "mixed whitespace",
			text: "marketplace\tfor\nlocal\r\nfarmers",
			want: []string{"marketplace", "local", "farmers"},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.text)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), MaxKeywords)
		})
	}
}

func TestExtractKeywordsProperties(t *testing.T) {
	inputs := []string{
		"An AI-powered personal chef that suggests recipes based on ingredients you have at home.",
		"Subscription boxes for indoor plant lovers with care guides",
		"What about an app where they share who, when, why and how?",
		"İstanbul street food tours booked by the \u212Aelvin-rated guides",
		"one two three four five six seven eight nine ten eleven twelve thirteen",
		"  ...!!!  ",
		"Peer-to-peer EV charging; drivers rent home chargers (hourly) to neighbours",
		"B2B SaaS for HVAC technicians: scheduling, invoicing & parts tracking",
	}

	for _, text := range inputs {
		first := ExtractKeywords(text)
		assert.Equal(t, first, ExtractKeywords(text), "not deterministic for %q", text)
		assert.LessOrEqual(t, len(first), MaxKeywords)

		seen := make(map[string]bool, len(first))
		for _, kw := range first {
			seen[kw] = true
			assert.Greater(t, len(kw), 2, "short token %q from %q", kw, text)
			assert.NotContains(t, stopWords, kw, "stop word %q from %q", kw, text)
		}

		for _, kw := range ExtractKeywords(strings.Join(first, " ")) {
			assert.True(t, seen[kw], "re-extracting %q produced new keyword %q", text, kw)
		}
	}
}

func TestExtractKeywordsDropsEveryStopWord(t *testing.T) {
	for word := range stopWords {
		t.Run(word, func(t *testing.T) {
			assert.Equal(t, []string{"gardening", "tools"}, ExtractKeywords("gardening "+word+" tools"))
			assert.Equal(t, []string{"gardening", "tools"}, ExtractKeywords("Gardening "+strings.ToUpper(word)+", tools"))
		})
	}
}

func TestAnalysisFieldsSummary(t *testing.T) {
	fields := AnalysisResult{
		Feasibility:     "doable",
		Demand:          "strong",
		Challenges:      "competition",
		Suggestions:     "niche down",
		ValidationScore: 72,
	}.Fields()

	assert.Equal(t, "Feasibility: doable\nDemand: strong\nChallenges: competition", fields.Summary())
	assert.False(t, fields.Empty())
	assert.True(t, AnalysisFields{Demand: "  "}.Empty())
}

func TestResultValidation(t *testing.T) {
	valid := AnalysisResult{Feasibility: "f", Demand: "d", Challenges: "c", Suggestions: "s", ValidationScore: 0}
	assert.NoError(t, valid.Validate())

	blank := valid
	blank.Suggestions = "   "
	assert.Error(t, blank.Validate())

	over := valid
	over.ValidationScore = 100.5
	assert.Error(t, over.Validate())

	assert.Error(t, EnhancedResult{EnhancedAnalysis: " "}.Validate())
	assert.NoError(t, EnhancedResult{EnhancedAnalysis: "ok"}.Validate())

	score := ValidationScoreResult{ValidationScore: 100, Analysis: ValidationDetails{Feasibility: "f", Demand: "d", Challenges: "c"}}
	assert.NoError(t, score.Validate())
	score.Analysis.Demand = ""
	assert.Error(t, score.Validate())
}
