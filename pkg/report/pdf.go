package report

import (
	"fmt"
	"path/filepath"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// ConvertToPDF converts a rendered HTML report to PDF next to it. Best
// effort: a missing wkhtmltopdf binary or a conversion failure comes back as
// ("", err) and the caller keeps the HTML-only report.
func ConvertToPDF(htmlPath string) (string, error) {
	gen, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return "", fmt.Errorf("pdf backend unavailable: %w", err)
	}

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", fmt.Errorf("resolve html path: %w", err)
	}

	page := wkhtmltopdf.NewPage(abs)
	page.EnableLocalFileAccess.Set(true)
	gen.AddPage(page)

	if err := gen.Create(); err != nil {
		return "", fmt.Errorf("convert to pdf: %w", err)
	}

	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	if err := gen.WriteFile(pdfPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return pdfPath, nil
}
