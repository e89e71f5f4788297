package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is built once at process start and passed into each component; no
// component reads ambient environment state on its own.
type Config struct {
	DBPath     string   `yaml:"db_path"`
	DefaultUF  string   `yaml:"default_uf"`
	IngestMode string   `yaml:"ingest_mode"`
	SourceURLs []string `yaml:"source_urls"`
	RawDir     string   `yaml:"raw_dir"`

	ChartsDir  string `yaml:"charts_dir"`
	ReportsDir string `yaml:"reports_dir"`
	AuditLog   string `yaml:"audit_log"`

	NewsQuery   string `yaml:"news_query"`
	DisableNews bool   `yaml:"disable_news"`
	DisablePDF  bool   `yaml:"disable_pdf"`

	// Credentials come from the environment only, never from the file.
	SerperKey   string `yaml:"-"`
	OpenAIKey   string `yaml:"-"`
	OpenAIModel string `yaml:"open_ai_model"`

	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	APITimeout     time.Duration `yaml:"api_timeout"`
	APIMaxRetries  int           `yaml:"api_max_retries"`
	APIBackoffBase time.Duration `yaml:"api_backoff_base"`
}

func defaults() Config {
	return Config{
		DBPath:         "data/srag.sqlite",
		DefaultUF:      "SP",
		IngestMode:     "auto",
		RawDir:         "data/raw",
		ChartsDir:      "resources/charts",
		ReportsDir:     "resources/reports",
		AuditLog:       "resources/json/events.jsonl",
		NewsQuery:      "SRAG Brasil",
		OpenAIModel:    "gpt-4o-mini",
		FetchTimeout:   60 * time.Second,
		APITimeout:     15 * time.Second,
		APIMaxRetries:  2,
		APIBackoffBase: 500 * time.Millisecond,
	}
}

// LoadConfig builds the configuration: defaults, then the optional YAML file,
// then environment variables. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults + env only
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.DefaultUF, "UF_INICIAL")
	if v := os.Getenv("INGEST_MODE"); v != "" {
		cfg.IngestMode = strings.ToLower(v)
	}
	if v := os.Getenv("SRAG_URLS"); v != "" {
		cfg.SourceURLs = SplitURLs(v)
	}
	setString(&cfg.RawDir, "RAW_DIR")
	setString(&cfg.ChartsDir, "CHARTS_DIR")
	setString(&cfg.ReportsDir, "REPORTS_DIR")
	setString(&cfg.AuditLog, "LOG_FILE")
	setString(&cfg.NewsQuery, "NEWS_QUERY")
	setString(&cfg.SerperKey, "SERPER_API_KEY")
	setString(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIModel, "OPENAI_SUMMARY_MODEL")
	setBool(&cfg.DisableNews, "DISABLE_NEWS")
	setBool(&cfg.DisablePDF, "DISABLE_PDF")
	setSeconds(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setSeconds(&cfg.APITimeout, "API_TIMEOUT")
	if v := os.Getenv("API_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.APIMaxRetries = n
		}
	}
	setSeconds(&cfg.APIBackoffBase, "API_BACKOFF_BASE")
}

// SplitURLs splits a comma-separated URL list, dropping empty entries.
func SplitURLs(s string) []string {
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

// setSeconds reads a duration expressed in seconds, allowing fractions
// (API_BACKOFF_BASE=0.5).
func setSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			*dst = time.Duration(secs * float64(time.Second))
		}
	}
}
