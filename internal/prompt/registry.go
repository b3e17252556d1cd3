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

// Package prompt turns named prompt templates into validated, typed model
// outputs. Templates are YAML documents; outputs are checked against the
// JSON schema of the Go type they decode into.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtinTemplates embed.FS

// ErrUnknownTemplate is returned for names that were never registered
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Definition is a single prompt template.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	System      string   `yaml:"system"`
	Prompt      string   `yaml:"prompt"`
	Tools       []string `yaml:"tools"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	"join": func(items []string, sep string) string { return strings.Join(items, sep) },
}

func (d *Definition) compile() error {
	if d.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if strings.TrimSpace(d.Prompt) == "" {
		return fmt.Errorf("template %s: prompt is empty", d.Name)
	}
	tmpl, err := template.New(d.Name).Funcs(templateFuncs).Option("missingkey=error").Parse(d.Prompt)
	if err != nil {
		return fmt.Errorf("template %s: %w", d.Name, err)
	}
	d.tmpl = tmpl
	return nil
}

// Render fills the template with input.
func (d *Definition) Render(input any) (string, error) {
	if d.tmpl == nil {
		if err := d.compile(); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("render %s: %w", d.Name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Registry holds prompt definitions by name
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// LoadDefaults returns a registry holding the built-in templates.
func LoadDefaults() (*Registry, error) {
	r := NewRegistry()
	if err := r.Load(builtinTemplates, "templates"); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDir loads every *.yaml file in dir, replacing same-named templates.
func (r *Registry) LoadDir(dir string) error {
	return r.Load(os.DirFS(dir), ".")
}

// Load reads every *.yaml file under dir in fsys.
func (r *Registry) Load(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if err := r.Register(&def); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Register compiles def and stores it under its name.
func (r *Registry) Register(def *Definition) error {
	if err := def.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Get returns the named definition
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return def, nil
}

// Names lists registered templates in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
