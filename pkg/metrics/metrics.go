package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Point is one entry of a case-count series.
type Point struct {
	Date  time.Time
	Cases int
}

// Metrics is the indicator set computed for one UF. Rate pointers are nil
// when the underlying values are missing or a denominator is zero; a UF with
// no data yields all-nil rates and empty series, which is a valid state.
type Metrics struct {
	UF              string
	IncreaseRate    *float64
	MortalityRate   *float64
	ICURate         *float64
	VaccinationRate *float64
	Series30d       []Point
	Series12m       []Point
	CurrentCases    *int
	PrevCases       *int
}

// Engine computes indicators from the materialized store. Read-only.
type Engine struct {
	db  *sql.DB
	now func() time.Time
}

// NewEngine creates an Engine over db.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// NewEngineAt creates an Engine with a fixed clock, for tests.
func NewEngineAt(db *sql.DB, now func() time.Time) *Engine {
	return &Engine{db: db, now: now}
}

// Compute returns the four rate indicators plus the daily 30-day and monthly
// 12-month series for uf.
func (e *Engine) Compute(ctx context.Context, uf string) (*Metrics, error) {
	m := &Metrics{UF: uf}

	// Month-over-month increase from the two most recent monthly rows.
	current, prev, err := e.lastTwoMonths(ctx, uf)
	if err != nil {
		return nil, err
	}
	m.CurrentCases, m.PrevCases = current, prev
	if current != nil && *current != 0 && prev != nil && *prev != 0 {
		rate := float64(*current-*prev) / float64(*prev)
		m.IncreaseRate = &rate
	}

	// Each rate is sourced from its own latest-month query; the latest month
	// with deaths populated is not guaranteed to be the one with ICU data.
	if m.MortalityRate, err = e.latestMonthRate(ctx, uf, "deaths"); err != nil {
		return nil, err
	}
	if m.ICURate, err = e.latestMonthRate(ctx, uf, "icu_cases"); err != nil {
		return nil, err
	}
	if m.VaccinationRate, err = e.latestMonthRate(ctx, uf, "vaccinated_cases"); err != nil {
		return nil, err
	}

	today := e.now().UTC()
	if m.Series30d, err = e.series(ctx,
		`SELECT day, cases FROM srag_daily WHERE uf = ? AND day >= ? ORDER BY day`,
		uf, today.AddDate(0, 0, -30).Format("2006-01-02")); err != nil {
		return nil, err
	}
	if m.Series12m, err = e.series(ctx,
		`SELECT month, cases FROM srag_monthly WHERE uf = ? AND month >= ? ORDER BY month`,
		uf, today.AddDate(0, -12, 0).Format("2006-01-02")); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) lastTwoMonths(ctx context.Context, uf string) (current, prev *int, err error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT cases FROM srag_monthly WHERE uf = ? ORDER BY month DESC LIMIT 2`, uf)
	if err != nil {
		return nil, nil, fmt.Errorf("query last two months: %w", err)
	}
	defer rows.Close()

	var values []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, nil, fmt.Errorf("scan monthly cases: %w", err)
		}
		values = append(values, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(values) > 0 {
		current = &values[0]
	}
	if len(values) > 1 {
		prev = &values[1]
	}
	return current, prev, nil
}

// latestMonthRate returns numerator/cases for the most recent monthly row of
// uf, or nil when the row is absent or has zero cases.
func (e *Engine) latestMonthRate(ctx context.Context, uf, numerator string) (*float64, error) {
	q := fmt.Sprintf(
		`SELECT %s, cases FROM srag_monthly WHERE uf = ? ORDER BY month DESC LIMIT 1`, numerator)
	var num, cases int
	err := e.db.QueryRowContext(ctx, q, uf).Scan(&num, &cases)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest %s: %w", numerator, err)
	}
	if cases == 0 {
		return nil, nil
	}
	rate := float64(num) / float64(cases)
	return &rate, nil
}

func (e *Engine) series(ctx context.Context, query, uf, since string) ([]Point, error) {
	rows, err := e.db.QueryContext(ctx, query, uf, since)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	series := []Point{}
	for rows.Next() {
		var date string
		var cases int
		if err := rows.Scan(&date, &cases); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		p := Point{Cases: cases}
		if t, err := time.Parse("2006-01-02", date); err == nil {
			p.Date = t
		}
		series = append(series, p)
	}
	return series, rows.Err()
}
