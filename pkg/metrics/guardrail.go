package metrics

import "time"

// Today returns the guardrail reference date: the current UTC day, computed
// once per pipeline invocation.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ClampFutureDates returns a new series without the points dated strictly
// after today and without the points whose date could not be parsed. Source
// files occasionally carry provisional future-dated placeholder rows; a chart
// showing cases that have not happened yet would mislead readers.
func ClampFutureDates(series []Point, today time.Time) []Point {
	limit := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]Point, 0, len(series))
	for _, p := range series {
		if p.Date.IsZero() {
			continue
		}
		day := time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
		if day.After(limit) {
			continue
		}
		out = append(out, p)
	}
	return out
}
