package model

// Sentiment is the label assigned to a review by the upstream scorer.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
	// SentimentUnknown marks reviews the scorer could not label.
	SentimentUnknown Sentiment = ""
)

// ParseSentiment maps a raw label to a Sentiment. Unrecognized labels
// (including the literal "nan" the source files carry) map to
// SentimentUnknown rather than failing the row.
func ParseSentiment(s string) Sentiment {
	switch s {
	case "Positive", "positive":
		return SentimentPositive
	case "Negative", "negative":
		return SentimentNegative
	case "Neutral", "neutral":
		return SentimentNeutral
	default:
		return SentimentUnknown
	}
}

// ReviewRecord is one user review. App is a display-name foreign key into
// the app catalog; the name-based join is a documented limitation of the
// upstream data, not a stable identifier.
type ReviewRecord struct {
	App          string    `json:"app"`
	Text         string    `json:"translated_review"`
	Sentiment    Sentiment `json:"sentiment"`
	Polarity     float64   `json:"sentiment_polarity"`
	Subjectivity float64   `json:"sentiment_subjectivity"`
}

// ReviewColumns is the canonical column order for the reviews seed snapshot.
var ReviewColumns = []string{
	"app",
	"translated_review",
	"sentiment",
	"sentiment_polarity",
	"sentiment_subjectivity",
}

// Values returns the record's fields in ReviewColumns order.
func (r *ReviewRecord) Values() []any {
	return []any{
		r.App,
		r.Text,
		string(r.Sentiment),
		r.Polarity,
		r.Subjectivity,
	}
}
