// Package prompt renders agent user prompts from work-unit payloads.
// Rendering is pure: a parsed template applied to a payload yields a
// string or an error, nothing else.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// Payload is the data available to user-prompt templates.
type Payload struct {
	Project        string
	SourceLanguage string
	TargetLanguage string
	Phase          string
	UnitID         string
	Scene          string
	Route          string
	Lines          []Line
}

// Line is the per-line view exposed to templates.
type Line struct {
	ID          string
	Speaker     string
	Source      string
	Translation string
	ContextNote string
	QANote      string
}

// FromUnit builds the template payload for one work unit.
func FromUnit(project, sourceLang, targetLang string, u model.WorkUnit) Payload {
	p := Payload{
		Project:        project,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Phase:          string(u.Phase),
		UnitID:         u.ID,
		Scene:          u.Scene,
		Route:          u.Route,
		Lines:          make([]Line, 0, len(u.Lines)),
	}
	for _, l := range u.Lines {
		p.Lines = append(p.Lines, Line{
			ID:          l.ID,
			Speaker:     l.Speaker,
			Source:      l.Source,
			Translation: l.Translation.Value,
			ContextNote: l.ContextNote.Value,
			QANote:      l.QANote.Value,
		})
	}
	return p
}

// Template is a parsed user-prompt template.
type Template struct {
	t *template.Template
}

// Parse compiles a template, failing on malformed syntax. Parsing at
// construction lets bad templates surface before any invocation.
func Parse(tmpl string) (*Template, error) {
	if strings.TrimSpace(tmpl) == "" {
		return nil, fmt.Errorf("prompt: template is empty")
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("prompt: parsing template: %w", err)
	}
	return &Template{t: t}, nil
}

// Render executes the template against the payload. References to
// fields the payload does not carry fail rather than render blank.
func (t *Template) Render(p Payload) (string, error) {
	var sb strings.Builder
	if err := t.t.Execute(&sb, p); err != nil {
		return "", fmt.Errorf("prompt: rendering template: %w", err)
	}
	return sb.String(), nil
}

// Render is a convenience for one-shot parse-and-render.
func Render(tmpl string, p Payload) (string, error) {
	t, err := Parse(tmpl)
	if err != nil {
		return "", err
	}
	return t.Render(p)
}
