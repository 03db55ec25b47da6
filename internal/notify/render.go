package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"finledger/web"
)

type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded email templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(m Message) (Email, error) {
	if err := m.Validate(); err != nil {
		return Email{}, err
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(m.Kind)+".html", m); err != nil {
		return Email{}, fmt.Errorf("render %s: %w", m.Kind, err)
	}
	return Email{To: m.To, Subject: m.Subject, HTML: buf.String()}, nil
}
