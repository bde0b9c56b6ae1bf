package source

import (
	"io"

	"github.com/apppulse/apppulse/internal/model"
)

// ReadReviews parses a user-review CSV into normalized ReviewRecords.
//
// Rows without an owning app name are dropped. Sentiment labels outside
// the known set map to the unknown label; polarity and subjectivity
// default to 0.0 when unparseable. Review text of "nan" (pandas' null
// marker in the source files) becomes empty.
func ReadReviews(path string) ([]model.ReviewRecord, *DropReport, error) {
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
	var records []model.ReviewRecord

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
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

		text := field(row, idx, "translated_review")
		if text == "nan" || text == "NaN" {
			text = ""
		}

		records = append(records, model.ReviewRecord{
			App:          name,
			Text:         text,
			Sentiment:    model.ParseSentiment(field(row, idx, "sentiment")),
			Polarity:     floatOrZero(field(row, idx, "sentiment_polarity")),
			Subjectivity: floatOrZero(field(row, idx, "sentiment_subjectivity")),
		})
		report.RowsKept++
	}

	return records, report, nil
}
