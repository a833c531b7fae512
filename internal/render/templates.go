package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Fragment template names.
const (
	TemplateClusterRow = "cluster-row"
	TemplateMemberRow  = "member-row"
	TemplateTooltip    = "tooltip"
	TemplateTooltipRow = "tooltip-row"
	TemplatePage       = "page"
	TemplateError      = "error"
)

// Templates provides the named page fragments.
type Templates struct {
	t *template.Template
}

// LoadTemplates parses the embedded fragment templates.
func LoadTemplates() (*Templates, error) {
	t, err := template.New("fragments").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	for _, name := range []string{TemplateClusterRow, TemplateMemberRow, TemplateTooltip, TemplateTooltipRow, TemplatePage, TemplateError} {
		if t.Lookup(name) == nil {
			return nil, fmt.Errorf("missing template %q", name)
		}
	}
	return &Templates{t: t}, nil
}

// MustLoadTemplates is like LoadTemplates but panics on error.
func MustLoadTemplates() *Templates {
	t, err := LoadTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Clone executes the named fragment with data. Every call yields an
// independent fragment.
func (t *Templates) Clone(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// RenderError renders the visible page shown when a dataset failed to load.
func (t *Templates) RenderError(title string, loadErr error) ([]byte, error) {
	html, err := t.Clone(TemplateError, struct {
		Title string
		Error string
	}{Title: title, Error: loadErr.Error()})
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}
