package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/hazyhaar/sentinela/pkg/metrics"
	"github.com/hazyhaar/sentinela/pkg/source"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.ParseFS(templateFS, "templates/report.html.tmpl"))

// RenderHTML renders the report template with context and writes the HTML
// into outDir. Context values must be scalars or file paths; frames and
// series are rejected so row-level data can never leak into a report.
func RenderHTML(context map[string]any, outDir string) (string, error) {
	for key, value := range context {
		if isTabular(value) {
			return "", fmt.Errorf("report context contains tabular data under %q", key)
		}
	}

	// Render from a copy; the caller's map stays untouched.
	data := make(map[string]any, len(context))
	for k, v := range context {
		data[k] = v
	}
	// Chart paths come from the filesystem layer; keep them POSIX so the
	// HTML works regardless of the OS that generated it.
	for _, key := range []string{"chart_30d", "chart_12m"} {
		if p, ok := data[key].(string); ok {
			data[key] = filepath.ToSlash(p)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	outPath := filepath.Join(outDir, "relatorio.html")
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return outPath, nil
}

// isTabular flags the row-level data shapes of this pipeline.
func isTabular(v any) bool {
	switch v.(type) {
	case *source.Frame, source.Frame, []metrics.Point, *metrics.Metrics:
		return true
	}
	return false
}
