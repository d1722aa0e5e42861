package reporting

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/shelfcheck/internal/results"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"percent":     percent,
		"statusClass": statusClass,
		"statusLabel": statusLabel,
		"join":        strings.Join,
		"isoTime":     func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templateFS, "templates/report.html.tmpl"),
)

// HTMLRenderer writes a self-contained HTML page for the report.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(w io.Writer, report *results.RunReport) error {
	return reportTemplate.Execute(w, report)
}

func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func statusClass(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}

func statusLabel(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
