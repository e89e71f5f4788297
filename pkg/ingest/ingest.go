package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/sentinela/pkg/normalize"
	"github.com/hazyhaar/sentinela/pkg/source"
)

// Mode selects where sources come from.
type Mode string

const (
	// ModeAuto reads local files when the raw directory has any, otherwise
	// falls back to the configured URLs.
	ModeAuto Mode = "auto"
	// ModeLocal always reads the raw directory.
	ModeLocal Mode = "local"
	// ModeRemote always fetches the configured URLs.
	ModeRemote Mode = "remote"
)

// ParseMode validates an ingestion mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeLocal, ModeRemote:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid ingest mode %q: use auto, local or remote", s)
}

// Ingestor rebuilds the relational store from all resolved sources.
type Ingestor struct {
	store     *Store
	fetcher   *source.Fetcher
	logger    *slog.Logger
	mode      Mode
	localDir  string
	urls      []string
	defaultUF string
}

// Options configures an Ingestor.
type Options struct {
	Mode      Mode
	LocalDir  string
	URLs      []string
	DefaultUF string
	Fetcher   *source.Fetcher
	Logger    *slog.Logger
}

// New creates an Ingestor writing into store.
func New(store *Store, opts Options) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = source.NewFetcher(0)
	}
	return &Ingestor{
		store:     store,
		fetcher:   fetcher,
		logger:    logger,
		mode:      opts.Mode,
		localDir:  opts.LocalDir,
		urls:      opts.URLs,
		defaultUF: opts.DefaultUF,
	}
}

// Ingest reads every resolved source, normalizes the records and rebuilds the
// store in one atomic swap. A source that fails to load is logged and skipped;
// the run only fails when no source at all could be loaded.
func (in *Ingestor) Ingest(ctx context.Context) error {
	local, err := in.useLocal()
	if err != nil {
		return err
	}

	var records []normalize.Record
	loaded := 0
	if local {
		records, loaded, err = in.readLocal()
	} else {
		records, loaded, err = in.readRemote(ctx)
	}
	if err != nil {
		return err
	}
	if loaded == 0 {
		return fmt.Errorf("ingestion failed: no source could be loaded")
	}

	in.logger.Info("sources consolidated", "sources", loaded, "rows", len(records))
	if err := in.store.Rebuild(records); err != nil {
		return fmt.Errorf("rebuild store: %w", err)
	}
	return nil
}

// useLocal resolves the mode state machine: explicit local/remote win, auto
// probes the raw directory for any CSV or ZIP.
func (in *Ingestor) useLocal() (bool, error) {
	switch in.mode {
	case ModeLocal:
		return true, nil
	case ModeRemote:
		if len(in.urls) == 0 {
			return false, fmt.Errorf("ingest mode remote but no source URLs configured")
		}
		return false, nil
	}
	if len(in.listLocal()) > 0 {
		in.logger.Info("local sources detected", "dir", in.localDir)
		return true, nil
	}
	if len(in.urls) == 0 {
		return false, fmt.Errorf("ingest mode auto: no local sources in %s and no source URLs configured", in.localDir)
	}
	return false, nil
}

func (in *Ingestor) listLocal() []string {
	csvs, _ := filepath.Glob(filepath.Join(in.localDir, "*.csv"))
	zips, _ := filepath.Glob(filepath.Join(in.localDir, "*.zip"))
	paths := append(csvs, zips...)
	sort.Strings(paths)
	return paths
}

func (in *Ingestor) readLocal() ([]normalize.Record, int, error) {
	paths := in.listLocal()
	var records []normalize.Record
	loaded := 0
	for _, path := range paths {
		frame, err := source.ReadFile(path, source.WantedColumns)
		if err != nil {
			in.logger.Error("source skipped", "path", path, "error", err)
			continue
		}
		in.logger.Info("source read", "path", filepath.Base(path), "rows", frame.Len())
		records = append(records, normalize.Normalize(frame, in.defaultUF)...)
		loaded++
	}
	return records, loaded, nil
}

func (in *Ingestor) readRemote(ctx context.Context) ([]normalize.Record, int, error) {
	var records []normalize.Record
	loaded := 0
	for _, url := range in.urls {
		frame, err := in.fetcher.Fetch(ctx, url, source.WantedColumns)
		if err != nil {
			in.logger.Error("source skipped", "url", url, "error", err)
			continue
		}
		in.logger.Info("source fetched", "url", url, "rows", frame.Len())
		records = append(records, normalize.Normalize(frame, in.defaultUF)...)
		loaded++
	}
	return records, loaded, nil
}
