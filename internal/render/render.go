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

// Package render holds presentation helpers for the HTML pages
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"math"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Score bands used for the score circle colour
const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

// Raw HTML in model output is dropped by goldmark unless WithUnsafe is set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markdown converts model-written markdown to HTML. On a conversion error
// the text is returned escaped.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// ScoreBand maps a 0-100 score to low (<40), medium (<70) or high
func ScoreBand(score float64) string {
	switch {
	case score < 40:
		return BandLow
	case score < 70:
		return BandMedium
	default:
		return BandHigh
	}
}

// FormatScore renders a score as a whole number
func FormatScore(score float64) string {
	return fmt.Sprintf("%.0f", math.Round(score))
}

// FuncMap returns the template helpers
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown":    Markdown,
		"scoreBand":   ScoreBand,
		"formatScore": FormatScore,
	}
}
