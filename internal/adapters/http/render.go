package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/desk.css
var stylesheet []byte

var baseTemplates = template.Must(template.New("layout.html").Funcs(template.FuncMap{
	"csrfField": func() template.HTML { return "" },
	"join":      strings.Join,
}).ParseFS(templateFS, "templates/*.html"))

// renderTemplate executes page inside layout.html with a per-request CSRF field.
func renderTemplate(w http.ResponseWriter, r *http.Request, page string, data any) {
	tpl, err := baseTemplates.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	tpl.Funcs(template.FuncMap{
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
	})
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, page, data); err != nil {
		slog.Error("template_render_failed", "template", page, "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func handleStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(stylesheet)
}
