package router

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

// ErrNoTemplate indicates a panel's template could not be loaded.
var ErrNoTemplate = errors.New("router: panel template unavailable")

// TemplateSource loads panel templates by file name.
type TemplateSource interface {
	Load(name string) (string, error)
}

// FSTemplates reads templates from a filesystem, typically the overlay of a
// local templates directory over the embedded copy.
type FSTemplates struct {
	fsys fs.FS
}

// NewFSTemplates creates a source over fsys.
func NewFSTemplates(fsys fs.FS) *FSTemplates {
	return &FSTemplates{fsys: fsys}
}

// Load reads the named template. It must exist and be non-empty.
func (s *FSTemplates) Load(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid template name %q", ErrNoTemplate, name)
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoTemplate, name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrNoTemplate, name)
	}
	return string(data), nil
}

// Compose executes a panel template against data. Templates use
// text/template syntax ({{.Title}}); a template without markers is
// returned unchanged.
func Compose(name, raw string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("router: parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("router: executing template %s: %w", name, err)
	}
	return buf.String(), nil
}
