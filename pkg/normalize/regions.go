package normalize

import (
	"fmt"
	"strings"
)

// validUFs is the closed set of the 27 Brazilian federative units.
var validUFs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true,
	"DF": true, "ES": true, "GO": true, "MA": true, "MT": true, "MS": true,
	"MG": true, "PA": true, "PB": true, "PR": true, "PE": true, "PI": true,
	"RJ": true, "RN": true, "RS": true, "RO": true, "RR": true, "SC": true,
	"SP": true, "SE": true, "TO": true,
}

// IsValidUF reports whether uf is one of the 27 federative unit codes.
func IsValidUF(uf string) bool {
	return validUFs[uf]
}

// ValidateUF normalizes a user-supplied UF and rejects anything outside the
// closed set. Used at the pipeline entry point before any ingestion I/O.
func ValidateUF(uf string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(uf))
	if u == "" {
		return "", fmt.Errorf("empty UF")
	}
	if !validUFs[u] {
		return "", fmt.Errorf("invalid UF %q: use a two-letter code such as SP", uf)
	}
	return u, nil
}

// normalizeUF maps one raw region value to a valid UF code: first two
// characters, uppercased, validated per row against the closed set. Corrupt
// or truncated codes fall back to the configured default.
func normalizeUF(raw, defaultUF string) string {
	u := strings.ToUpper(strings.TrimSpace(raw))
	if r := []rune(u); len(r) > 2 {
		u = string(r[:2])
	}
	if !validUFs[u] {
		return defaultUF
	}
	return u
}
