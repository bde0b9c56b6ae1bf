// Package source reads raw catalog and review CSV files and produces
// normalized record sets. Readers are pure transforms: no store access,
// no side effects beyond the returned records and drop report.
package source

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apppulse/apppulse/pkg/apperrors"
)

// Drop reasons reported by readers. One bad row never aborts a load;
// it is counted here and the load continues.
const (
	DropMissingName = "missing_app_name"
	DropBadInstalls = "non_numeric_installs"
	DropRaggedRow   = "field_count_mismatch"
)

// DropReport counts rows a reader discarded, keyed by reason.
type DropReport struct {
	RowsRead int
	RowsKept int
	ByReason map[string]int
}

func newDropReport() *DropReport {
	return &DropReport{ByReason: make(map[string]int)}
}

func (r *DropReport) drop(reason string) {
	r.ByReason[reason]++
}

// Dropped returns the total number of discarded rows.
func (r *DropReport) Dropped() int {
	n := 0
	for _, c := range r.ByReason {
		n += c
	}
	return n
}

// NormalizeHeader canonicalizes a raw column header: surrounding
// whitespace stripped, inner spaces replaced with underscores, lowered.
// "Content Rating" and "content_rating" resolve to the same column.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ToLower(h)
}

// columnIndex builds a normalized-name -> position map for a header row.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[NormalizeHeader(h)] = i
	}
	return idx
}

// field returns the trimmed cell at column name, or "" when the column
// is absent or the row is short.
func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// floatOrZero parses a float, substituting 0.0 for anything unparseable.
// Ratings and sentiment scores default rather than fail the row.
func floatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// cleanInstalls strips display formatting ("1,000,000+" -> "1000000") and
// reports whether the cleaned value is a pure digit string. Values like
// "Free" indicate a structurally shifted record and the row is dropped,
// not coerced to zero.
func cleanInstalls(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "+")
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// openCSV opens path and returns a csv.Reader tolerant of ragged rows
// (field-count errors are handled per row, not per file).
func openCSV(path string) (*csv.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.Wrap(apperrors.CodeFileNotFound, "source file not found", err).
				WithContext("path", path)
		}
		return nil, nil, apperrors.Wrap(apperrors.CodeSourceFormat, "cannot open source file", err).
			WithContext("path", path)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r, f.Close, nil
}

// readHeader reads and indexes the header row, verifying that the
// identifying column is present. Its absence is fatal for the whole load.
func readHeader(r *csv.Reader, path, keyColumn string) (map[string]int, error) {
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, apperrors.New(apperrors.CodeSourceFormat, "source file is empty").
				WithContext("path", path)
		}
		return nil, apperrors.Wrap(apperrors.CodeSourceFormat, "cannot read header row", err).
			WithContext("path", path)
	}

	idx := columnIndex(header)
	if _, ok := idx[keyColumn]; !ok {
		return nil, apperrors.Newf(apperrors.CodeSourceFormat,
			"identifying column %q absent from header", keyColumn).
			WithContext("path", path).
			WithContext("columns", len(idx))
	}
	return idx, nil
}
