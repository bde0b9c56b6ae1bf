package source

import (
	"io"

	"github.com/apppulse/apppulse/internal/model"
)

// Defaults substituted for missing descriptive fields. The catalog data
// uses these markers itself, so the defaults are indistinguishable from
// organically sparse rows downstream.
const (
	defaultCategory      = "UNKNOWN"
	defaultType          = "Free"
	defaultPrice         = "0"
	defaultContentRating = "Everyone"
	defaultGenres        = "Unknown"
	defaultLastUpdated   = "Unknown"
	defaultVaries        = "Varies with device"
	defaultReviews       = "0"
)

// ReadApps parses a catalog CSV into normalized AppRecords.
//
// Per-row policy: rows without an app name are dropped; ratings that fail
// numeric parse default to 0.0; installs are stripped of "," and "+"
// and the row is dropped if the remainder is not a pure digit string.
// A missing "app" column in the header fails the whole read.
func ReadApps(path string) ([]model.AppRecord, *DropReport, error) {
	r, closeFile, err := openCSV(path)
	if err != nil {
		return nil, nil, err
	}
	defer closeFile()

	idx, err := readHeader(r, path, "app")
	if err != nil {
		return nil, nil, err
	}

	report := newDropReport()
	var records []model.AppRecord

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// With FieldsPerRecord=-1 only malformed quoting errors
			// per row; treat it as a row-level drop.
			report.RowsRead++
			report.drop(DropRaggedRow)
			continue
		}

		report.RowsRead++

		name := field(row, idx, "app")
		if name == "" {
			report.drop(DropMissingName)
			continue
		}

		installs, ok := cleanInstalls(field(row, idx, "installs"))
		if !ok {
			report.drop(DropBadInstalls)
			continue
		}

		records = append(records, model.AppRecord{
			Name:          name,
			Category:      orDefault(field(row, idx, "category"), defaultCategory),
			Rating:        floatOrZero(field(row, idx, "rating")),
			Reviews:       orDefault(field(row, idx, "reviews"), defaultReviews),
			Size:          orDefault(field(row, idx, "size"), defaultVaries),
			Installs:      installs,
			Type:          orDefault(field(row, idx, "type"), defaultType),
			Price:         orDefault(field(row, idx, "price"), defaultPrice),
			ContentRating: orDefault(field(row, idx, "content_rating"), defaultContentRating),
			Genres:        orDefault(field(row, idx, "genres"), defaultGenres),
			LastUpdated:   orDefault(field(row, idx, "last_updated"), defaultLastUpdated),
			CurrentVer:    orDefault(field(row, idx, "current_ver"), defaultVaries),
			AndroidVer:    orDefault(field(row, idx, "android_ver"), defaultVaries),
		})
		report.RowsKept++
	}

	return records, report, nil
}

func orDefault(s, def string) string {
	if s == "" || s == "nan" || s == "NaN" {
		return def
	}
	return s
}
