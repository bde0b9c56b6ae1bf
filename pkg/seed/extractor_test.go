package seed

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apppulse/apppulse/internal/model"
)

type fakeAppReader struct {
	records []model.AppRecord
	err     error
}

func (f *fakeAppReader) FetchApps(ctx context.Context) ([]model.AppRecord, error) {
	return f.records, f.err
}

type fakeReviewReader struct {
	records []model.ReviewRecord
	err     error
}

func (f *fakeReviewReader) FetchReviews(ctx context.Context) ([]model.ReviewRecord, error) {
	return f.records, f.err
}

func readSnapshot(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return rows
}

func TestExtractApps(t *testing.T) {
	reader := &fakeAppReader{records: []model.AppRecord{
		{
			Name: "Photo Editor", Category: "ART_AND_DESIGN", Rating: 4.1,
			Reviews: "159", Size: "19M", Installs: 10000, Type: "Paid",
			Price: "$4.99", ContentRating: "Everyone", Genres: "Art & Design",
			LastUpdated: "January 7, 2018", CurrentVer: "1.0.0", AndroidVer: "4.0.3 and up",
		},
	}}

	dir := t.TempDir()
	res, err := ExtractApps(context.Background(), reader, dir)
	if err != nil {
		t.Fatalf("ExtractApps failed: %v", err)
	}
	if res.Rows != 1 {
		t.Errorf("expected 1 row, got %d", res.Rows)
	}
	if res.Path != filepath.Join(dir, "apps_from_postgres.csv") {
		t.Errorf("unexpected snapshot path %q", res.Path)
	}

	rows := readSnapshot(t, res.Path)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if !reflect.DeepEqual(rows[0], model.AppColumns) {
		t.Errorf("header = %v, want %v", rows[0], model.AppColumns)
	}

	// Price column carries the numeric value, not the display string.
	priceIdx := -1
	for i, col := range rows[0] {
		if col == "price" {
			priceIdx = i
		}
	}
	if priceIdx < 0 {
		t.Fatal("price column missing from header")
	}
	if rows[1][priceIdx] != "4.99" {
		t.Errorf("expected price 4.99, got %q", rows[1][priceIdx])
	}
}

// An empty store still yields a snapshot with the contract's header.
func TestExtractApps_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	res, err := ExtractApps(context.Background(), &fakeAppReader{}, dir)
	if err != nil {
		t.Fatalf("ExtractApps failed: %v", err)
	}
	if res.Rows != 0 {
		t.Errorf("expected 0 rows, got %d", res.Rows)
	}

	rows := readSnapshot(t, res.Path)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
	if !reflect.DeepEqual(rows[0], model.AppColumns) {
		t.Errorf("header = %v, want %v", rows[0], model.AppColumns)
	}
}

func TestExtractReviews(t *testing.T) {
	reader := &fakeReviewReader{records: []model.ReviewRecord{
		{App: "Photo Editor", Text: "love it", Sentiment: model.SentimentPositive, Polarity: 0.9, Subjectivity: 0.8},
		{App: "Photo Editor", Text: "", Sentiment: model.SentimentUnknown, Polarity: 0, Subjectivity: 0},
	}}

	dir := t.TempDir()
	res, err := ExtractReviews(context.Background(), reader, dir)
	if err != nil {
		t.Fatalf("ExtractReviews failed: %v", err)
	}
	if res.Rows != 2 {
		t.Errorf("expected 2 rows, got %d", res.Rows)
	}

	rows := readSnapshot(t, res.Path)
	if !reflect.DeepEqual(rows[0], model.ReviewColumns) {
		t.Errorf("header = %v, want %v", rows[0], model.ReviewColumns)
	}
	if rows[1][2] != "Positive" {
		t.Errorf("expected sentiment Positive, got %q", rows[1][2])
	}
	if rows[2][2] != "" {
		t.Errorf("expected empty sentiment, got %q", rows[2][2])
	}
}

// A rewrite replaces the previous snapshot in place.
func TestExtract_Overwrites(t *testing.T) {
	dir := t.TempDir()

	first := &fakeAppReader{records: []model.AppRecord{{Name: "One", Installs: 1}}}
	if _, err := ExtractApps(context.Background(), first, dir); err != nil {
		t.Fatalf("first extract failed: %v", err)
	}

	second := &fakeAppReader{records: []model.AppRecord{
		{Name: "One", Installs: 1},
		{Name: "Two", Installs: 2},
	}}
	res, err := ExtractApps(context.Background(), second, dir)
	if err != nil {
		t.Fatalf("second extract failed: %v", err)
	}

	rows := readSnapshot(t, res.Path)
	if len(rows) != 3 {
		t.Errorf("expected header + 2 rows after overwrite, got %d", len(rows))
	}

	// No temp file left behind.
	if _, err := os.Stat(res.Path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp snapshot file left behind")
	}
}

func TestCleanPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$4.99", "4.99"},
		{"0", "0"},
		{"2.50", "2.50"},
		{"$ 1.99", "1.99"},
		{"Everyone", "0"},
		{"", "0"},
	}

	for _, tt := range tests {
		if got := cleanPrice(tt.in); got != tt.want {
			t.Errorf("cleanPrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContractCheckRow(t *testing.T) {
	row := make([]string, len(model.AppColumns))
	if err := AppsContract.CheckRow(row); err != nil {
		t.Errorf("expected full-width row to pass: %v", err)
	}
	if err := AppsContract.CheckRow(row[:3]); err == nil {
		t.Error("expected short row to fail the contract")
	}
}
