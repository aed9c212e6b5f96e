// Package prompts renders the stage prompt templates. Templates are loaded
// from a configurable directory when present, falling back to the built-in
// defaults, so deployments can tune wording without a rebuild.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Loader resolves and renders prompt templates.
type Loader struct {
	baseDir string
}

// NewLoader creates a prompt loader rooted at baseDir. An empty baseDir
// serves built-in templates only.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load renders the named template with data. Name is the template file name
// without extension, e.g. "stage1_file_review".
func (l *Loader) Load(name string, data map[string]any) (string, error) {
	name = strings.TrimSuffix(name, ".md")

	content := ""
	if l.baseDir != "" {
		path := filepath.Join(l.baseDir, name+".md")
		raw, err := os.ReadFile(path)
		if err == nil {
			content = string(raw)
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", path, err)
		}
	}
	if content == "" {
		builtin, ok := defaults[name]
		if !ok {
			return "", fmt.Errorf("no prompt template named %q", name)
		}
		content = builtin
	}

	return l.render(name, content, data)
}

func (l *Loader) render(name, tmplContent string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute prompt template %s: %w", name, err)
	}
	return sb.String(), nil
}
