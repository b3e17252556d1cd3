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
	"errors"
	"fmt"
)

// ErrorKind classifies a failed model call
type ErrorKind string

const (
	KindTemplate  ErrorKind = "template"
	KindTransport ErrorKind = "transport"
	KindParse     ErrorKind = "parse"
	KindSchema    ErrorKind = "schema"
	KindToolLoop  ErrorKind = "tool-loop"
)

// CallError is the single error type returned by Invoke.
type CallError struct {
	TemplateID string
	Kind       ErrorKind
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("prompt %s: %s failure: %v", e.TemplateID, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf returns the kind of the CallError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	return ""
}
