package ingest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/sentinela/pkg/normalize"
	_ "modernc.org/sqlite"
)

// Store owns the SQLite file holding the four pipeline tables: srag_staging,
// srag_base, srag_daily and srag_monthly. Each ingestion run rebuilds all of
// them from scratch; readers only ever see the previous complete set or the
// new one, never a mix.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite database at path, creating parent
// directories as needed.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for read-only consumers (metrics queries).
func (s *Store) DB() *sql.DB {
	return s.db
}

// tableNames in dependency order: staging feeds base, base feeds aggregates.
var tableNames = []string{"srag_staging", "srag_base", "srag_daily", "srag_monthly"}

// Rebuild replaces the four tables with ones derived from records. Everything
// is built into *_next shadow tables and renamed into place inside a single
// transaction, so an interrupted rebuild leaves the previous tables intact.
func (s *Store) Rebuild(records []normalize.Record) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, t := range tableNames {
		if _, err = tx.Exec("DROP TABLE IF EXISTS " + t + "_next"); err != nil {
			return fmt.Errorf("drop stale %s_next: %w", t, err)
		}
	}

	if err = buildStaging(tx, records); err != nil {
		return err
	}
	if err = buildDerived(tx); err != nil {
		return err
	}

	for _, t := range tableNames {
		if _, err = tx.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
		if _, err = tx.Exec("ALTER TABLE " + t + "_next RENAME TO " + t); err != nil {
			return fmt.Errorf("swap %s: %w", t, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_srag_base_date_uf ON srag_base (event_date, uf)",
		"CREATE INDEX IF NOT EXISTS idx_srag_daily_day_uf ON srag_daily (day, uf)",
		"CREATE INDEX IF NOT EXISTS idx_srag_monthly_month_uf ON srag_monthly (month, uf)",
	}
	for _, ddl := range indexes {
		if _, err = tx.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

func buildStaging(tx *sql.Tx, records []normalize.Record) error {
	const ddl = `CREATE TABLE srag_staging_next (
		event_date TEXT,
		uf         TEXT NOT NULL,
		evolucao   INTEGER NOT NULL,
		uti        INTEGER NOT NULL,
		vacina_cov INTEGER NOT NULL
	)`
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO srag_staging_next
		(event_date, uf, evolucao, uti, vacina_cov) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var date any
		if rec.EventDate != nil {
			date = rec.EventDate.Format("2006-01-02")
		}
		if _, err := stmt.Exec(date, rec.UF, rec.Evolution, rec.ICU, rec.Vaccine); err != nil {
			return fmt.Errorf("insert staging row: %w", err)
		}
	}
	return nil
}

// buildDerived materializes base and the two aggregates from staging. The
// sentinel codes of the source schema are applied here: EVOLUCAO 2 marks a
// death, UTI 1 an ICU admission, VACINA_COV 1 a vaccinated case.
func buildDerived(tx *sql.Tx) error {
	stmts := []struct {
		name string
		ddl  string
	}{
		{"base", `CREATE TABLE srag_base_next AS
			SELECT
			  event_date,
			  uf,
			  CASE WHEN evolucao = 2 THEN 1 ELSE 0 END AS death_flag,
			  CASE WHEN uti = 1 THEN 1 ELSE 0 END AS icu_flag,
			  CASE WHEN vacina_cov = 1 THEN 1 ELSE 0 END AS vaccinated_flag
			FROM srag_staging_next
			WHERE event_date IS NOT NULL`},
		{"daily", `CREATE TABLE srag_daily_next AS
			SELECT date(event_date) AS day, uf,
			       COUNT(*) AS cases,
			       SUM(icu_flag) AS icu_cases,
			       SUM(death_flag) AS deaths,
			       SUM(vaccinated_flag) AS vaccinated_cases
			FROM srag_base_next
			GROUP BY 1, 2`},
		{"monthly", `CREATE TABLE srag_monthly_next AS
			SELECT strftime('%Y-%m-01', event_date) AS month, uf,
			       COUNT(*) AS cases,
			       SUM(icu_flag) AS icu_cases,
			       SUM(death_flag) AS deaths,
			       SUM(vaccinated_flag) AS vaccinated_cases
			FROM srag_base_next
			GROUP BY 1, 2`},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.ddl); err != nil {
			return fmt.Errorf("materialize %s: %w", st.name, err)
		}
	}
	return nil
}
