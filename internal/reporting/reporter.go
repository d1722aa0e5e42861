// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// FilePrefix starts the name of every report file.
const FilePrefix = "ecommerce-test-report-"

// Renderer writes a run report in one output format.
type Renderer interface {
	Render(w io.Writer, report *results.RunReport) error
}

// New returns the renderer for format: "json", "html" or "text".
func New(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return JSONRenderer{}, nil
	case "html":
		return HTMLRenderer{}, nil
	case "text", "console":
		return ConsoleRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Paths locates the report files written for one run.
type Paths struct {
	JSON string `json:"json"`
	HTML string `json:"html"`
}

// BaseName is the file name for a report without its extension. The
// timestamp is ISO-8601 in UTC with millisecond precision, with ':' and '.'
// replaced so the name is portable.
func BaseName(ts time.Time) string {
	stamp := ts.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return FilePrefix + strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// WriteFiles renders report as JSON and HTML into dir, creating it if
// needed. A leading ~ in dir is expanded.
func WriteFiles(dir string, report *results.RunReport) (Paths, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	base := filepath.Join(dir, BaseName(report.Timestamp))
	paths := Paths{JSON: base + ".json", HTML: base + ".html"}
	for _, file := range []struct{ format, path string }{
		{"json", paths.JSON},
		{"html", paths.HTML},
	} {
		r, err := New(file.format)
		if err != nil {
			return Paths{}, err
		}
		if err := writeFile(file.path, r, report); err != nil {
			return Paths{}, err
		}
	}
	return paths, nil
}

func writeFile(path string, r Renderer, report *results.RunReport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", path, cerr)
		}
	}()
	if err := r.Render(f, report); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
