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
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxKeywords caps the keyword list handed to the live-data tools.
const MaxKeywords = 10

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "in": {}, "on": {}, "for": {},
	"of": {}, "with": {}, "to": {}, "it": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"they": {}, "we": {}, "my": {}, "and": {}, "but": {}, "or": {}, "so": {}, "that": {},
	"about": {}, "what": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"app": {},
}

// ExtractKeywords derives up to MaxKeywords search terms from free text.
// Punctuation is deleted rather than split on, so "AI-powered" becomes
// "aipowered". Duplicates are kept and order follows the input.
func ExtractKeywords(text string) []string {
	lowered := cases.Lower(language.Und).String(text)
	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lowered)

	keywords := make([]string, 0, MaxKeywords)
	for _, token := range strings.Fields(cleaned) {
		if len(token) <= 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

// isWordRune matches the ASCII word class [A-Za-z0-9_].
func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
