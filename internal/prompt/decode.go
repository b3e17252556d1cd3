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
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Validatable outputs get a domain check after decoding.
type Validatable interface {
	Validate() error
}

var (
	schemaCache sync.Map // reflect.Type -> *jsonschema.Definition
	validate    = validator.New(validator.WithRequiredStructEnabled())
)

// SchemaFor returns the JSON schema for the value out points to.
func SchemaFor(out any) (*jsonschema.Definition, error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("output must be a non-nil pointer, got %T", out)
	}
	t := rv.Elem().Type()
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*jsonschema.Definition), nil
	}
	schema, err := jsonschema.GenerateSchemaForType(rv.Elem().Interface())
	if err != nil {
		return nil, err
	}
	schemaCache.Store(t, schema)
	return schema, nil
}

// decodeOutput parses model content into out. Malformed JSON is a parse
// failure; missing fields, wrong types and failed checks are schema
// failures.
func decodeOutput(content string, schema *jsonschema.Definition, out any) (ErrorKind, error) {
	raw := extractJSON(content)
	if raw == "" {
		return KindParse, errors.New("model returned no JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return KindParse, fmt.Errorf("decode model output: %w", err)
	}
	if err := checkRequired(fields, schema); err != nil {
		return KindSchema, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return KindSchema, fmt.Errorf("model output does not match schema: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return KindSchema, fmt.Errorf("model output failed validation: %w", err)
	}
	if v, ok := out.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return KindSchema, fmt.Errorf("model output failed validation: %w", err)
		}
	}
	return "", nil
}

// checkRequired verifies that every required property is present and, for
// non-array properties, not null. Nested objects are checked recursively.
func checkRequired(fields map[string]json.RawMessage, schema *jsonschema.Definition) error {
	for _, name := range schema.Required {
		value, ok := fields[name]
		prop := schema.Properties[name]
		if !ok || (isNull(value) && prop.Type != jsonschema.Array) {
			return fmt.Errorf("model output is missing required field %q", name)
		}
		if prop.Type == jsonschema.Object && len(prop.Required) > 0 {
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(value, &nested); err != nil {
				return fmt.Errorf("field %q is not an object: %w", name, err)
			}
			if err := checkRequired(nested, &prop); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// extractJSON strips markdown fences and surrounding prose from content.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
