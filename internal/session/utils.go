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

package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultTitle is used until an idea is submitted
const DefaultTitle = "New Idea"

const maxTitleLength = 60

// GenerateSessionID generates a unique session identifier
func GenerateSessionID() string {
	return uuid.New().String()
}

// ValidateSessionID reports whether id looks like a generated session ID
func ValidateSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GenerateTitle builds a short single-line title from an idea
func GenerateTitle(idea string) string {
	title := strings.Join(strings.Fields(idea), " ")
	if title == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleLength])) + "..."
	}
	return title
}

// IsExpired checks if a session is expired
func IsExpired(session *Session) bool {
	return session.ExpiresAt.Before(time.Now())
}
