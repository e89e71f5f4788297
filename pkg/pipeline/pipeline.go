package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hazyhaar/sentinela/pkg/audit"
	"github.com/hazyhaar/sentinela/pkg/ingest"
	"github.com/hazyhaar/sentinela/pkg/metrics"
	"github.com/hazyhaar/sentinela/pkg/news"
	"github.com/hazyhaar/sentinela/pkg/normalize"
	"github.com/hazyhaar/sentinela/pkg/report"
	"github.com/hazyhaar/sentinela/pkg/source"
)

// Result collects the artifacts of one pipeline run.
type Result struct {
	UF          string
	Metrics     *metrics.Metrics
	NewsItems   []news.Item
	NewsSummary string
	Chart30d    string
	Chart12m    string
	HTMLPath    string
	PDFPath     string
}

// Pipeline runs the full ingest -> metrics -> charts -> news -> report flow
// as one sequential unit of work.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	audit  *audit.Log
}

// New creates a Pipeline and opens its audit trail.
func New(cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	auditLog, err := audit.Open(cfg.AuditLog)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, logger: logger, audit: auditLog}, nil
}

// Close releases the audit trail.
func (p *Pipeline) Close() error {
	return p.audit.Close()
}

// Run executes the pipeline for uf. The UF and the ingest mode are validated
// before any ingestion I/O. On any unrecovered failure no report is written
// and the previous one on disk stays untouched.
func (p *Pipeline) Run(ctx context.Context, uf string) (*Result, error) {
	uf, err := normalize.ValidateUF(uf)
	if err != nil {
		return nil, err
	}
	mode, err := ingest.ParseMode(p.cfg.IngestMode)
	if err != nil {
		return nil, err
	}

	runID := audit.NewRunID()
	run := p.audit.StartSpan(runID, "run", map[string]any{"node": "orchestrator", "uf": uf})

	result, err := p.run(ctx, runID, uf, mode)
	if err != nil {
		run.Fail(err)
		return nil, err
	}
	run.End()
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID, uf string, mode ingest.Mode) (*Result, error) {
	res := &Result{UF: uf}

	m, err := p.ingestAndCompute(ctx, runID, uf, mode)
	if err != nil {
		return nil, err
	}
	res.Metrics = m

	if err := p.renderCharts(runID, res); err != nil {
		return nil, err
	}

	p.gatherNews(ctx, runID, res)

	if err := p.renderReport(runID, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) ingestAndCompute(ctx context.Context, runID, uf string, mode ingest.Mode) (*metrics.Metrics, error) {
	span := p.audit.StartSpan(runID, "ingest", map[string]any{"node": "ingest", "ingest_mode": string(mode)})
	store, err := ingest.OpenStore(p.cfg.DBPath)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	defer store.Close()

	ingestor := ingest.New(store, ingest.Options{
		Mode:      mode,
		LocalDir:  p.cfg.RawDir,
		URLs:      p.cfg.SourceURLs,
		DefaultUF: p.cfg.DefaultUF,
		Fetcher:   source.NewFetcher(p.cfg.FetchTimeout),
		Logger:    p.logger,
	})
	if err := ingestor.Ingest(ctx); err != nil {
		span.Fail(err)
		return nil, err
	}
	p.audit.Event(runID, "ingest.output", map[string]any{"db": p.cfg.DBPath})
	span.End()

	span = p.audit.StartSpan(runID, "metrics", map[string]any{"node": "metrics", "uf": uf})
	engine := metrics.NewEngine(store.DB())
	m, err := engine.Compute(ctx, uf)
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	today := metrics.Today()
	m.Series30d = metrics.ClampFutureDates(m.Series30d, today)
	m.Series12m = metrics.ClampFutureDates(m.Series12m, today)

	p.audit.Event(runID, "metrics.summary", map[string]any{
		"increase_rate":    rateValue(m.IncreaseRate),
		"mortality_rate":   rateValue(m.MortalityRate),
		"icu_rate":         rateValue(m.ICURate),
		"vaccination_rate": rateValue(m.VaccinationRate),
		"rows_30d":         len(m.Series30d),
		"rows_12m":         len(m.Series12m),
	})
	span.End()
	return m, nil
}

func (p *Pipeline) renderCharts(runID string, res *Result) error {
	span := p.audit.StartSpan(runID, "charts", map[string]any{"node": "charts"})
	m := res.Metrics

	// A lone data point cannot be drawn as a time series; the report just
	// omits that chart.
	if len(m.Series30d) > 1 {
		path := filepath.Join(p.cfg.ChartsDir, "casos_30d.png")
		if err := report.RenderChart(m.Series30d, "day", "cases", "Casos diários (30d)", path); err != nil {
			span.Fail(err)
			return err
		}
		res.Chart30d = path
	}
	if len(m.Series12m) > 1 {
		path := filepath.Join(p.cfg.ChartsDir, "casos_12m.png")
		if err := report.RenderChart(m.Series12m, "month", "cases", "Casos mensais (12m)", path); err != nil {
			span.Fail(err)
			return err
		}
		res.Chart12m = path
	}

	p.audit.Event(runID, "charts.output", map[string]any{
		"chart_30d": res.Chart30d, "chart_12m": res.Chart12m,
	})
	span.End()
	return nil
}

// gatherNews never fails the run: search errors degrade to an empty item
// list and summarization falls back to fixed strings.
func (p *Pipeline) gatherNews(ctx context.Context, runID string, res *Result) {
	span := p.audit.StartSpan(runID, "news", map[string]any{"node": "news", "query": p.cfg.NewsQuery})
	defer span.End()

	if p.cfg.DisableNews {
		res.NewsSummary = news.NoItemsMessage
		p.audit.Event(runID, "news.skipped", map[string]any{"reason": "disabled"})
		return
	}

	client := news.NewClient(news.Config{
		SerperKey:   p.cfg.SerperKey,
		OpenAIKey:   p.cfg.OpenAIKey,
		OpenAIModel: p.cfg.OpenAIModel,
		Timeout:     p.cfg.APITimeout,
		MaxRetries:  p.cfg.APIMaxRetries,
		BackoffBase: p.cfg.APIBackoffBase,
	}, p.audit)

	items, err := client.Search(ctx, runID, p.cfg.NewsQuery, 5)
	if err != nil {
		p.logger.Warn("news search failed", "error", err)
		items = nil
	}
	p.audit.Event(runID, "news.items", map[string]any{"count": len(items)})

	res.NewsItems = items
	res.NewsSummary = client.Summarize(ctx, runID, items)
	p.audit.Event(runID, "news.summary", map[string]any{"length": len(res.NewsSummary)})
}

func (p *Pipeline) renderReport(runID string, res *Result) error {
	span := p.audit.StartSpan(runID, "report", map[string]any{"node": "report"})
	m := res.Metrics

	context := map[string]any{
		"uf":               res.UF,
		"increase_rate":    formatRate(m.IncreaseRate),
		"mortality_rate":   formatRate(m.MortalityRate),
		"icu_rate":         formatRate(m.ICURate),
		"vaccination_rate": formatRate(m.VaccinationRate),
		"chart_30d":        relToReports(p.cfg.ReportsDir, res.Chart30d),
		"chart_12m":        relToReports(p.cfg.ReportsDir, res.Chart12m),
		"news_summary":     res.NewsSummary,
		"now":              metrics.Today().Format("02/01/2006"),
	}

	htmlPath, err := report.RenderHTML(context, p.cfg.ReportsDir)
	if err != nil {
		span.Fail(err)
		return err
	}
	res.HTMLPath = htmlPath

	if !p.cfg.DisablePDF {
		pdfPath, err := report.ConvertToPDF(htmlPath)
		if err != nil {
			p.logger.Warn("pdf conversion skipped", "error", err)
			p.audit.Event(runID, "report.pdf_skipped", map[string]any{"error": err.Error()})
		} else {
			res.PDFPath = pdfPath
		}
	}

	p.audit.Event(runID, "report.output", map[string]any{"html": res.HTMLPath, "pdf": res.PDFPath})
	span.End()
	return nil
}

// formatRate rounds a KPI to four decimals for presentation stability.
func formatRate(v *float64) string {
	if v == nil {
		return "indisponível"
	}
	return fmt.Sprintf("%.4f", *v)
}

func rateValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// relToReports rewrites a chart path relative to the reports directory so
// the HTML references it portably.
func relToReports(reportsDir, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(reportsDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
