package source

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// WantedColumns is the column core used by the pipeline, as named in the
// SRAG 2024/2025 CSV exports.
var WantedColumns = []string{
	"DT_SIN_PRI",
	"EVOLUCAO",
	"UTI",
	"VACINA_COV",
	"CLASSI_FIN",
	"SEM_PRI",
	"SG_UF_NOT",
	"SG_UF",
	"SG_UF_RES",
}

// fallbackColumns is tried when none of the wanted columns match the header,
// e.g. for pre-2024 exports with a reduced column set.
var fallbackColumns = []string{
	"DT_SIN_PRI",
	"EVOLUCAO",
	"UTI",
	"VACINA_COV",
	"UF",
	"SG_UF_NOT",
	"SG_UF",
	"SG_UF_RES",
}

// ReadFile reads a local .csv or .zip source and returns the frame restricted
// to whichever wanted columns the file actually has.
func ReadFile(path string, wanted []string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return ReadZip(data, wanted)
	}
	return Read(data, wanted)
}

// ReadZip opens a ZIP archive in memory and reads the largest contained CSV.
// Government exports bundle the main dataset with small dictionary files; the
// biggest entry is the dataset.
func ReadZip(data []byte, wanted []string) (*Frame, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var target *zip.File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(zf.Name), ".csv") {
			continue
		}
		if target == nil || zf.UncompressedSize64 > target.UncompressedSize64 {
			target = zf
		}
	}
	if target == nil {
		return nil, fmt.Errorf("zip has no csv entries")
	}

	rc, err := target.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", target.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", target.Name, err)
	}
	return Read(raw, wanted)
}

// Read parses one semicolon-separated CSV held in memory. Encoding is UTF-8
// with a Latin-1 fallback; individual malformed lines are skipped.
func Read(data []byte, wanted []string) (*Frame, error) {
	decoded, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = ';'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	cols, srcIdx := selectColumns(colIdx, wanted)
	if len(cols) == 0 {
		cols, srcIdx = selectColumns(colIdx, fallbackColumns)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no usable columns in header %v", header)
	}

	frame := NewFrame(cols)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated or corrupt line; keep reading.
			continue
		}
		row := make([]string, len(cols))
		ok := true
		for i, si := range srcIdx {
			if si >= len(record) {
				ok = false
				break
			}
			row[i] = strings.TrimSpace(record[si])
		}
		if !ok {
			continue
		}
		frame.Append(row)
	}
	return frame, nil
}

// selectColumns keeps the subset of candidates present in the header,
// preserving candidate order, and returns their source positions.
func selectColumns(colIdx map[string]int, candidates []string) ([]string, []int) {
	var cols []string
	var srcIdx []int
	for _, c := range candidates {
		if i, ok := colIdx[c]; ok {
			cols = append(cols, c)
			srcIdx = append(srcIdx, i)
		}
	}
	return cols, srcIdx
}

// decodeBytes accepts the bytes as-is when they are valid UTF-8 and otherwise
// reinterprets them as Latin-1, the other encoding found in SRAG exports.
func decodeBytes(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode csv: not UTF-8 and latin-1 fallback failed: %w", err)
	}
	return out, nil
}
