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
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	registry, err := LoadDefaults()
	require.NoError(t, err)

	assert.Equal(t, []string{"analyzeStartupIdea", "enhanceAnalysisWithLiveData", "generateValidationScore"}, registry.Names())

	enhance, err := registry.Get("enhanceAnalysisWithLiveData")
	require.NoError(t, err)
	assert.Equal(t, []string{"getMarketTrends", "getNews"}, enhance.Tools)
	require.NotNil(t, enhance.Temperature)

	score, err := registry.Get("generateValidationScore")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyzeIdea", "shouldAnalyzeIdea"}, score.Tools)
}

func TestRenderBuiltinTemplates(t *testing.T) {
	registry, err := LoadDefaults()
	require.NoError(t, err)

	analyze, err := registry.Get("analyzeStartupIdea")
	require.NoError(t, err)
	text, err := analyze.Render(struct{ Idea string }{Idea: "A marketplace for used lab equipment"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "Startup Idea: A marketplace for used lab equipment"))
	assert.Contains(t, text, "validation score (0-100)")

	enhance, err := registry.Get("enhanceAnalysisWithLiveData")
	require.NoError(t, err)
	text, err = enhance.Render(struct {
		InitialAnalysis string
		IdeaKeywords    []string
	}{
		InitialAnalysis: "Feasibility: ok\nDemand: high\nChallenges: none",
		IdeaKeywords:    []string{"marketplace", "equipment"},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Initial Analysis: Feasibility: ok\nDemand: high\nChallenges: none")
	assert.Contains(t, text, "Idea Keywords: marketplace, equipment")
}

func TestRenderMissingField(t *testing.T) {
	def := &Definition{Name: "broken", Prompt: "Idea: {{.Missing}}"}
	require.NoError(t, def.compile())

	_, err := def.Render(struct{ Idea string }{Idea: "x"})
	assert.Error(t, err)
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("nope")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRegistryLoadOverrides(t *testing.T) {
	registry, err := LoadDefaults()
	require.NoError(t, err)

	fsys := fstest.MapFS{
		"prompts/analyze.yaml": {Data: []byte("name: analyzeStartupIdea\nprompt: \"Rate {{.Idea}}\"\nmax_tokens: 42\n")},
		"prompts/README.md":    {Data: []byte("ignored")},
	}
	require.NoError(t, registry.Load(fsys, "prompts"))

	def, err := registry.Get("analyzeStartupIdea")
	require.NoError(t, err)
	assert.Equal(t, 42, def.MaxTokens)
	text, err := def.Render(struct{ Idea string }{Idea: "drones"})
	require.NoError(t, err)
	assert.Equal(t, "Rate drones", text)
}

func TestRegistryLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"no name":    "prompt: hi\n",
		"no prompt":  "name: empty\n",
		"bad syntax": "name: bad\nprompt: \"{{.Idea\"\n",
		"bad yaml":   "name: [unterminated\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			fsys := fstest.MapFS{"t/x.yaml": {Data: []byte(body)}}
			assert.Error(t, NewRegistry().Load(fsys, "t"))
		})
	}
}
