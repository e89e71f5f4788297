package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/sentinela/pkg/source"
)

// ufCandidates is the priority order for deriving the UF of a record. The
// notification UF is preferred; residence UF is the last resort.
var ufCandidates = []string{"SG_UF_NOT", "SG_UF", "SG_UF_RES", "UF"}

// flagColumns are the binary-indicator columns coerced to integers.
var flagColumns = []string{"EVOLUCAO", "UTI", "VACINA_COV"}

// Record is one case-level record after date, UF and flag cleanup. EventDate
// is nil when the source value could not be parsed; such records are dropped
// at base-table materialization, not here. Flag fields hold the raw coerced
// codes (e.g. EVOLUCAO 2 = death); sentinel mapping happens in the store.
type Record struct {
	EventDate *time.Time
	UF        string
	Evolution int
	ICU       int
	Vaccine   int
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Normalize converts a raw frame into normalized records. Records always come
// out with a valid UF; unresolvable region values fall back to defaultUF.
func Normalize(f *source.Frame, defaultUF string) []Record {
	dateCol := f.Col("DT_SIN_PRI")
	iso := dateColumnIsISO(f, dateCol)

	ufCol := -1
	for _, c := range ufCandidates {
		if f.HasCol(c) {
			ufCol = f.Col(c)
			break
		}
	}

	flagCols := make([]int, len(flagColumns))
	for i, c := range flagColumns {
		flagCols[i] = f.Col(c)
	}

	records := make([]Record, 0, f.Len())
	for _, row := range f.Rows {
		var rec Record

		if dateCol >= 0 && dateCol < len(row) {
			rec.EventDate = parseDate(row[dateCol], iso)
		}

		if ufCol >= 0 && ufCol < len(row) {
			rec.UF = normalizeUF(row[ufCol], defaultUF)
		} else {
			rec.UF = defaultUF
		}

		flags := [3]int{}
		for i, col := range flagCols {
			if col >= 0 && col < len(row) {
				flags[i] = coerceFlag(row[col])
			}
		}
		rec.Evolution, rec.ICU, rec.Vaccine = flags[0], flags[1], flags[2]

		records = append(records, rec)
	}
	return records
}

// dateColumnIsISO samples the date column: when a majority of values match
// YYYY-MM-DD the file is ISO-dated, otherwise day-first. Source files mix
// both conventions across years without a schema flag.
func dateColumnIsISO(f *source.Frame, dateCol int) bool {
	if dateCol < 0 || f.Len() == 0 {
		return false
	}
	matches := 0
	for _, row := range f.Rows {
		if dateCol < len(row) && isoDateRe.MatchString(row[dateCol]) {
			matches++
		}
	}
	return float64(matches)/float64(f.Len()) > 0.5
}

// parseDate parses one date value; unparseable values become nil so the row
// survives normalization and is filtered later.
func parseDate(s string, iso bool) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{"02/01/2006", "2/1/2006"}
	if iso {
		layouts = []string{"2006-01-02"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// coerceFlag numeric-coerces one indicator value; anything non-numeric
// (including the empty string) counts as 0.
func coerceFlag(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v)
}
