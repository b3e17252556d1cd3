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

import "unicode/utf8"

const (
	// MinIdeaLength is the minimum idea length in characters
	MinIdeaLength = 10
	// MaxIdeaLength is the maximum idea length in characters
	MaxIdeaLength = 5000

	tooShortMessage = "Please describe your idea in at least 10 characters."
	tooLongMessage  = "Your idea must not be longer than 5000 characters."
)

// ValidateIdea checks the raw idea length and returns it unchanged.
// Length is measured in characters, not bytes.
func ValidateIdea(idea string) (string, error) {
	n := utf8.RuneCountInString(idea)
	switch {
	case n < MinIdeaLength:
		return "", &ValidationError{Field: "idea", Message: tooShortMessage}
	case n > MaxIdeaLength:
		return "", &ValidationError{Field: "idea", Message: tooLongMessage}
	}
	return idea, nil
}
