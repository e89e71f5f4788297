package normalize

import (
	"testing"
	"time"

	"github.com/hazyhaar/sentinela/pkg/source"
)

func frameOf(t *testing.T, columns []string, rows ...[]string) *source.Frame {
	t.Helper()
	f := source.NewFrame(columns)
	for _, r := range rows {
		f.Append(r)
	}
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_ISODates(t *testing.T) {
	f := frameOf(t, []string{"DT_SIN_PRI", "SG_UF_NOT"},
		[]string{"2025-01-15", "SP"},
		[]string{"2025-02-20", "RJ"},
	)
	recs := Normalize(f, "SP")
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].EventDate == nil || !recs[0].EventDate.Equal(date(2025, 1, 15)) {
		t.Errorf("event date = %v, want 2025-01-15", recs[0].EventDate)
	}
}

func TestNormalize_DayFirstDates(t *testing.T) {
	f := frameOf(t, []string{"DT_SIN_PRI", "SG_UF_NOT"},
		[]string{"15/01/2025", "SP"},
		[]string{"20/02/2025", "RJ"},
	)
	recs := Normalize(f, "SP")
	if recs[0].EventDate == nil || !recs[0].EventDate.Equal(date(2025, 1, 15)) {
		t.Errorf("event date = %v, want 2025-01-15", recs[0].EventDate)
	}
}

func TestNormalize_MajorityDecidesFormat(t *testing.T) {
	// Two ISO values against one day-first: the file counts as ISO and the
	// odd value becomes a null date.
	f := frameOf(t, []string{"DT_SIN_PRI"},
		[]string{"2025-01-15"},
		[]string{"2025-01-16"},
		[]string{"17/01/2025"},
	)
	recs := Normalize(f, "SP")
	if recs[0].EventDate == nil || recs[1].EventDate == nil {
		t.Error("ISO dates should parse")
	}
	if recs[2].EventDate != nil {
		t.Errorf("day-first value in ISO file = %v, want nil", recs[2].EventDate)
	}
}

func TestNormalize_UnparseableDateBecomesNil(t *testing.T) {
	f := frameOf(t, []string{"DT_SIN_PRI"},
		[]string{"15/01/2025"},
		[]string{"????"},
	)
	recs := Normalize(f, "SP")
	if recs[1].EventDate != nil {
		t.Errorf("unparseable date = %v, want nil", recs[1].EventDate)
	}
}

func TestNormalize_MissingDateColumn(t *testing.T) {
	f := frameOf(t, []string{"SG_UF_NOT"}, []string{"SP"})
	recs := Normalize(f, "SP")
	if recs[0].EventDate != nil {
		t.Errorf("event date without column = %v, want nil", recs[0].EventDate)
	}
}

func TestNormalize_UF(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercase", "sp", "SP"},
		{"valid", "RJ", "RJ"},
		{"long code truncated", "SPX", "SP"},
		{"invalid falls back", "XX", "GO"},
		{"empty falls back", "", "GO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameOf(t, []string{"SG_UF_NOT"}, []string{tt.raw})
			recs := Normalize(f, "GO")
			if recs[0].UF != tt.want {
				t.Errorf("UF(%q) = %q, want %q", tt.raw, recs[0].UF, tt.want)
			}
		})
	}
}

func TestNormalize_UFCandidatePriority(t *testing.T) {
	f := frameOf(t, []string{"SG_UF_RES", "SG_UF_NOT"}, []string{"BA", "MG"})
	recs := Normalize(f, "SP")
	if recs[0].UF != "MG" {
		t.Errorf("UF = %q, want MG (SG_UF_NOT has priority)", recs[0].UF)
	}
}

func TestNormalize_UFColumnAbsent(t *testing.T) {
	f := frameOf(t, []string{"DT_SIN_PRI"}, []string{"2025-01-15"})
	recs := Normalize(f, "CE")
	if recs[0].UF != "CE" {
		t.Errorf("UF = %q, want default CE", recs[0].UF)
	}
}

func TestNormalize_Flags(t *testing.T) {
	f := frameOf(t, []string{"EVOLUCAO", "UTI"},
		[]string{"2", "1"},
		[]string{"abc", ""},
		[]string{"9", "2"},
	)
	recs := Normalize(f, "SP")

	if recs[0].Evolution != 2 || recs[0].ICU != 1 {
		t.Errorf("row 0 flags = (%d, %d), want (2, 1)", recs[0].Evolution, recs[0].ICU)
	}
	// Non-numeric and empty coerce to 0, not an error.
	if recs[1].Evolution != 0 || recs[1].ICU != 0 {
		t.Errorf("row 1 flags = (%d, %d), want (0, 0)", recs[1].Evolution, recs[1].ICU)
	}
	if recs[2].Evolution != 9 {
		t.Errorf("row 2 evolution = %d, want 9", recs[2].Evolution)
	}
	// VACINA_COV column absent: filled with 0 for every row.
	for i, r := range recs {
		if r.Vaccine != 0 {
			t.Errorf("row %d vaccine = %d, want 0 (absent column)", i, r.Vaccine)
		}
	}
}

func TestValidateUF(t *testing.T) {
	if got, err := ValidateUF(" sp "); err != nil || got != "SP" {
		t.Errorf("ValidateUF(sp) = (%q, %v), want (SP, nil)", got, err)
	}
	if _, err := ValidateUF("ZZ"); err == nil {
		t.Error("expected error for UF ZZ")
	}
	if _, err := ValidateUF(""); err == nil {
		t.Error("expected error for empty UF")
	}
}
