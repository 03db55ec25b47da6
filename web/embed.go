package web

import "embed"

// TemplatesFS embeds the HTML email templates rendered by internal/notify.
//
//go:embed templates/*.html
var TemplatesFS embed.FS
