package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apppulse/apppulse/internal/model"
)

// AppReader is the read-back surface of the relational store.
type AppReader interface {
	FetchApps(ctx context.Context) ([]model.AppRecord, error)
}

// ReviewReader is the read-back surface of the document store.
type ReviewReader interface {
	FetchReviews(ctx context.Context) ([]model.ReviewRecord, error)
}

// Result summarizes one extraction.
type Result struct {
	Path string
	Rows int
}

// ExtractApps reads the current app generation back and writes the apps
// seed snapshot into dir. An empty store still produces a file with the
// contract's header row; downstream tooling requires headers to exist
// even with zero data rows.
func ExtractApps(ctx context.Context, st AppReader, dir string) (*Result, error) {
	records, err := st.FetchApps(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, appSeedRow(&records[i]))
	}
	return writeSnapshot(AppsContract, dir, rows)
}

// ExtractReviews reads the current review generation back and writes the
// reviews seed snapshot into dir.
func ExtractReviews(ctx context.Context, st ReviewReader, dir string) (*Result, error) {
	records, err := st.FetchReviews(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, reviewSeedRow(&records[i]))
	}
	return writeSnapshot(ReviewsContract, dir, rows)
}

// appSeedRow renders a record in AppsContract column order. Price is
// cleaned here ("$4.99" -> "4.99", unparseable -> "0") so the snapshot
// carries a numeric column.
func appSeedRow(rec *model.AppRecord) []string {
	return []string{
		rec.Name,
		rec.Category,
		formatFloat(rec.Rating),
		rec.Reviews,
		rec.Size,
		strconv.FormatInt(rec.Installs, 10),
		rec.Type,
		cleanPrice(rec.Price),
		rec.ContentRating,
		rec.Genres,
		rec.LastUpdated,
		rec.CurrentVer,
		rec.AndroidVer,
	}
}

func reviewSeedRow(rec *model.ReviewRecord) []string {
	return []string{
		rec.App,
		rec.Text,
		string(rec.Sentiment),
		formatFloat(rec.Polarity),
		formatFloat(rec.Subjectivity),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func cleanPrice(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "0"
	}
	return s
}

// writeSnapshot writes header plus rows atomically: the file appears
// under its final name only once fully written, so a transform run never
// reads a half-written snapshot.
func writeSnapshot(c Contract, dir string, rows [][]string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create seed directory: %w", err)
	}

	final := filepath.Join(dir, c.Filename())
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(c.Columns); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("write snapshot header: %w", err)
	}
	for _, row := range rows {
		if err := c.CheckRow(row); err != nil {
			f.Close()
			os.Remove(tmp)
			return nil, err
		}
		if err := w.Write(row); err != nil {
			f.Close()
			os.Remove(tmp)
			return nil, fmt.Errorf("write snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("finalize snapshot: %w", err)
	}

	slog.Default().With("component", "seed").Info("snapshot written",
		"contract", c.Name, "version", c.Version, "rows", len(rows), "path", final)

	return &Result{Path: final, Rows: len(rows)}, nil
}
