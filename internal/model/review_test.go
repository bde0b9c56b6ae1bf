package model

import "testing"

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		in   string
		want Sentiment
	}{
		{"Positive", SentimentPositive},
		{"positive", SentimentPositive},
		{"Negative", SentimentNegative},
		{"Neutral", SentimentNeutral},
		{"nan", SentimentUnknown},
		{"", SentimentUnknown},
		{"POSITIVE", SentimentUnknown},
	}

	for _, tt := range tests {
		if got := ParseSentiment(tt.in); got != tt.want {
			t.Errorf("ParseSentiment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReviewValuesOrder(t *testing.T) {
	rec := ReviewRecord{
		App: "Alpha", Text: "fine", Sentiment: SentimentNeutral,
		Polarity: 0.1, Subjectivity: 0.2,
	}

	values := rec.Values()
	if len(values) != len(ReviewColumns) {
		t.Fatalf("Values length %d does not match ReviewColumns %d", len(values), len(ReviewColumns))
	}
	if values[0] != "Alpha" || values[2] != "Neutral" {
		t.Errorf("unexpected value order: %v", values)
	}
}

func TestAppValuesOrder(t *testing.T) {
	rec := AppRecord{Name: "Alpha", Category: "GAME", Installs: 1000}

	values := rec.Values()
	if len(values) != len(AppColumns) {
		t.Fatalf("Values length %d does not match AppColumns %d", len(values), len(AppColumns))
	}
	if values[0] != "Alpha" {
		t.Errorf("expected app name first, got %v", values[0])
	}
}
