// Package templates embeds the HTML pages rendered by the controllers.
package templates

import (
	"embed"
	"html/template"

	"github.com/cppla/blog/forms"
	"github.com/cppla/blog/utils"
)

//go:embed *.html
var files embed.FS

// Funcs are available to every page.
var Funcs = template.FuncMap{
	// safeHTML marks already sanitised rich text as trusted.
	"safeHTML": func(s string) template.HTML {
		return template.HTML(s) //nolint:gosec
	},
	"gravatar": utils.Gravatar,
	"fieldError": func(errs forms.Errors, field string) string {
		return errs[field]
	},
}

// Load parses every embedded page. Templates are addressed by file name, e.g. "index.html".
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "*.html")
}
