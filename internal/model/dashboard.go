package model

// KPISet holds the scalar dashboard metrics. All three are computed from
// the fact table only, never from a review join.
type KPISet struct {
	DistinctApps    int64   `json:"distinct_apps"`
	AverageRating   float64 `json:"average_rating"`
	TotalInstalls   int64   `json:"total_installs"`
	InstallsDisplay string  `json:"installs_display"`
}

// RankedApp is one entry in the top-N rating ranking.
type RankedApp struct {
	Name   string  `json:"app_name"`
	Rating float64 `json:"average_rating"`
}

// ScatterPoint is one app in the rating-vs-installs series.
type ScatterPoint struct {
	Name     string  `json:"app_name"`
	Rating   float64 `json:"average_rating"`
	Installs int64   `json:"total_installs"`
	Price    float64 `json:"price"`
}

// SentimentCount is one slice of the sentiment distribution.
type SentimentCount struct {
	Sentiment Sentiment `json:"sentiment"`
	Count     int64     `json:"count"`
}

// DashboardData is the single result shape the presentation layer receives.
// Empty is set (with zeroed KPIs and nil-safe empty slices) when the
// filtered input has no rows; callers never see an error for that case.
type DashboardData struct {
	Category         string           `json:"category,omitempty"`
	Empty            bool             `json:"empty"`
	KPIs             KPISet           `json:"kpis"`
	RankedApps       []RankedApp      `json:"ranked_apps"`
	RatingVsInstalls []ScatterPoint   `json:"rating_vs_installs"`
	SentimentSummary []SentimentCount `json:"sentiment_distribution"`
	SeriesSampled    bool             `json:"series_sampled"`
}

// EmptyDashboard returns the well-defined "no data" result for a filter.
func EmptyDashboard(category string) *DashboardData {
	return &DashboardData{
		Category:         category,
		Empty:            true,
		KPIs:             KPISet{InstallsDisplay: "0"},
		RankedApps:       []RankedApp{},
		RatingVsInstalls: []ScatterPoint{},
		SentimentSummary: []SentimentCount{},
	}
}
