// Package model defines the record types that flow through the AppPulse
// pipeline, from raw CSV rows to dashboard result sets.
package model

// AppRecord is one normalized catalog entry. A loaded generation contains
// at most one record per Name; records are immutable once loaded and are
// superseded wholesale by the next load.
type AppRecord struct {
	Name          string  `json:"app"`
	Category      string  `json:"category"`
	Rating        float64 `json:"rating"`
	Reviews       string  `json:"reviews"`
	Size          string  `json:"size"`
	Installs      int64   `json:"installs"`
	Type          string  `json:"type"`
	Price         string  `json:"price"`
	ContentRating string  `json:"content_rating"`
	Genres        string  `json:"genres"`
	LastUpdated   string  `json:"last_updated"`
	CurrentVer    string  `json:"current_ver"`
	AndroidVer    string  `json:"android_ver"`
}

// AppColumns is the canonical column order for the apps_raw table and the
// apps seed snapshot. The order is load-bearing: the relational schema, the
// bulk insert and the seed contract all index into it.
var AppColumns = []string{
	"app",
	"category",
	"rating",
	"reviews",
	"size",
	"installs",
	"type",
	"price",
	"content_rating",
	"genres",
	"last_updated",
	"current_ver",
	"android_ver",
}

// Values returns the record's fields in AppColumns order.
func (a *AppRecord) Values() []any {
	return []any{
		a.Name,
		a.Category,
		a.Rating,
		a.Reviews,
		a.Size,
		a.Installs,
		a.Type,
		a.Price,
		a.ContentRating,
		a.Genres,
		a.LastUpdated,
		a.CurrentVer,
		a.AndroidVer,
	}
}
