package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Log is the append-only audit trail: one JSON object per line, every event
// carrying a run-correlation id. Credentials must never be placed in fields;
// events only carry identifiers, counts and durations.
type Log struct {
	logger zerolog.Logger
	file   *os.File
}

// Open creates (or appends to) the JSONL file at path.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{
		logger: zerolog.New(f).With().Timestamp().Logger(),
		file:   f,
	}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}

// NewRunID returns a fresh correlation id for one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// Event appends one key-value event.
func (l *Log) Event(runID, event string, fields map[string]any) {
	if l == nil {
		return
	}
	l.logger.Info().
		Str("event", event).
		Str("run_id", runID).
		Fields(fields).
		Msg("")
}

// Span instruments one pipeline stage with start/end/error events.
type Span struct {
	log     *Log
	event   string
	runID   string
	spanID  string
	started time.Time
}

// StartSpan writes <event>.start and returns a Span to be closed with End or
// Fail.
func (l *Log) StartSpan(runID, event string, fields map[string]any) *Span {
	s := &Span{
		log:     l,
		event:   event,
		runID:   runID,
		spanID:  uuid.NewString(),
		started: time.Now(),
	}
	if l != nil {
		l.logger.Info().
			Str("event", event+".start").
			Str("run_id", runID).
			Str("span_id", s.spanID).
			Fields(fields).
			Msg("")
	}
	return s
}

// End writes <event>.end with the elapsed duration.
func (s *Span) End() {
	if s.log == nil {
		return
	}
	s.log.logger.Info().
		Str("event", s.event+".end").
		Str("run_id", s.runID).
		Str("span_id", s.spanID).
		Int64("duration_ms", time.Since(s.started).Milliseconds()).
		Bool("ok", true).
		Msg("")
}

// Fail writes <event>.error with the elapsed duration and the error text.
func (s *Span) Fail(err error) {
	if s.log == nil {
		return
	}
	s.log.logger.Error().
		Str("event", s.event+".error").
		Str("run_id", s.runID).
		Str("span_id", s.spanID).
		Int64("duration_ms", time.Since(s.started).Milliseconds()).
		Bool("ok", false).
		Err(err).
		Msg("")
}
