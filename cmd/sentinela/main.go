package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/sentinela/pkg/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// .env feeds defaults; environment already set by the scheduler wins.
	godotenv.Load()

	fs := flag.NewFlagSet("sentinela", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	uf := fs.String("uf", "", "UF to report on (e.g. SP, RJ); default UF_INICIAL")
	mode := fs.String("ingest-mode", "", "ingestion mode: auto | local | remote")
	newsQuery := fs.String("news-query", "", "news search query override")
	noNews := fs.Bool("no-news", false, "skip the news stage")
	noPDF := fs.Bool("no-pdf", false, "skip PDF generation")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := pipeline.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinela: %v\n", err)
		return 1
	}
	if *mode != "" {
		cfg.IngestMode = *mode
	}
	if *newsQuery != "" {
		cfg.NewsQuery = *newsQuery
	}
	if *noNews {
		cfg.DisableNews = true
	}
	if *noPDF {
		cfg.DisablePDF = true
	}
	region := *uf
	if region == "" {
		region = cfg.DefaultUF
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinela: %v\n", err)
		return 1
	}
	defer p.Close()

	result, err := p.Run(ctx, region)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinela: pipeline failed: %v\n", err)
		return 1
	}

	logger.Info("pipeline finished", "uf", result.UF)
	fmt.Println("Relatório HTML:", orNone(result.HTMLPath))
	fmt.Println("Relatório PDF :", orNone(result.PDFPath))
	return 0
}

func orNone(path string) string {
	if path == "" {
		return "não gerado"
	}
	return path
}
