// Package query is the aggregation layer between the warehouse and the
// dashboard. Every result set it produces is fan-out safe: review rows
// are aggregated per label (or per app) before any combination with the
// fact table, and KPIs come from the fact table only, so a one-to-many
// app-to-review relationship can never multiply app-level figures.
package query

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/warehouse"
)

// Config tunes the query layer.
type Config struct {
	// TopN is the size of the rating ranking.
	TopN int
	// SampleCap bounds the rating-vs-installs series; larger filtered
	// sets are reservoir-sampled down to exactly this many points.
	SampleCap int
	// SampleSeed fixes the sampling RNG; zero seeds from the clock.
	SampleSeed int64
}

// DefaultConfig matches the dashboard's display budget.
func DefaultConfig() Config {
	return Config{TopN: 10, SampleCap: 2000}
}

// Service answers dashboard queries against a read-only warehouse
// handle. Requests are independent read-only queries; concurrent filter
// values need no coordination. Every request recomputes in full.
type Service struct {
	db  *warehouse.DB
	cfg Config
}

// NewService creates a query service over an open warehouse handle.
func NewService(db *warehouse.DB, cfg Config) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig().TopN
	}
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = DefaultConfig().SampleCap
	}
	return &Service{db: db, cfg: cfg}
}

// categoryFilter is the shared predicate: always evaluated against the
// dimension join, never a denormalized copy. Empty category means all.
const categoryFilter = `(? = '' OR dc.app_category = ?)`

// Dashboard computes the full dashboard payload for an optional category
// filter. An empty filtered set returns the explicit empty result.
// A missing or malformed warehouse returns a schema-mismatch error the
// HTTP layer maps to a pipeline-incomplete state.
func (s *Service) Dashboard(ctx context.Context, category string) (*model.DashboardData, error) {
	if err := s.db.VerifySchema(ctx); err != nil {
		return nil, err
	}

	kpis, err := s.kpis(ctx, category)
	if err != nil {
		return nil, err
	}
	if kpis.DistinctApps == 0 {
		return model.EmptyDashboard(category), nil
	}

	ranked, err := s.topRated(ctx, category)
	if err != nil {
		return nil, err
	}

	// Scalar KPIs are already computed from the full filtered set;
	// only the display series gets sampled.
	series, sampled, err := s.ratingVsInstalls(ctx, category)
	if err != nil {
		return nil, err
	}

	sentiment, err := s.sentimentDistribution(ctx, category)
	if err != nil {
		return nil, err
	}

	return &model.DashboardData{
		Category:         category,
		KPIs:             kpis,
		RankedApps:       ranked,
		RatingVsInstalls: series,
		SentimentSummary: sentiment,
		SeriesSampled:    sampled,
	}, nil
}

// kpis computes the scalar metrics from the fact table only. Joining
// reviews here would multiply every app-level figure by its review count.
func (s *Service) kpis(ctx context.Context, category string) (model.KPISet, error) {
	const q = `
		SELECT
			COUNT(DISTINCT da.app_name),
			COALESCE(ROUND(AVG(fm.average_user_rating), 2), 0.0),
			COALESCE(SUM(fm.total_installs), 0)
		FROM ` + warehouse.TableFact + ` fm
		JOIN ` + warehouse.TableDimApps + ` da USING (app_id)
		JOIN ` + warehouse.TableDimCats + ` dc USING (category_id)
		WHERE ` + categoryFilter

	var k model.KPISet
	var avg float64
	err := s.db.QueryRow(ctx, q, category, category).
		Scan(&k.DistinctApps, &avg, &k.TotalInstalls)
	if err != nil {
		return model.KPISet{}, err
	}
	if math.IsNaN(avg) {
		avg = 0
	}
	k.AverageRating = avg
	k.InstallsDisplay = FormatInstalls(k.TotalInstalls)
	return k, nil
}

// topRated ranks apps by mean rating, aggregating per distinct app name
// before taking the top N so an upstream join artifact duplicating an
// app cannot seat it twice.
func (s *Service) topRated(ctx context.Context, category string) ([]model.RankedApp, error) {
	q := `
		SELECT da.app_name, ROUND(AVG(fm.average_user_rating), 2) AS rating
		FROM ` + warehouse.TableFact + ` fm
		JOIN ` + warehouse.TableDimApps + ` da USING (app_id)
		JOIN ` + warehouse.TableDimCats + ` dc USING (category_id)
		WHERE ` + categoryFilter + `
		GROUP BY da.app_name
		ORDER BY rating DESC, da.app_name
		LIMIT ?`

	rows, err := s.db.Query(ctx, q, category, category, s.cfg.TopN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := []model.RankedApp{}
	for rows.Next() {
		var r model.RankedApp
		if err := rows.Scan(&r.Name, &r.Rating); err != nil {
			return nil, err
		}
		ranked = append(ranked, r)
	}
	return ranked, rows.Err()
}

// ratingVsInstalls builds the scatter series, aggregated per app, then
// reservoir-sampled down to the cap when the filtered set is dense.
func (s *Service) ratingVsInstalls(ctx context.Context, category string) ([]model.ScatterPoint, bool, error) {
	q := `
		SELECT
			da.app_name,
			AVG(fm.average_user_rating),
			SUM(fm.total_installs),
			MIN(fm.app_price)
		FROM ` + warehouse.TableFact + ` fm
		JOIN ` + warehouse.TableDimApps + ` da USING (app_id)
		JOIN ` + warehouse.TableDimCats + ` dc USING (category_id)
		WHERE ` + categoryFilter + `
		GROUP BY da.app_name
		ORDER BY da.app_name`

	rows, err := s.db.Query(ctx, q, category, category)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	points := []model.ScatterPoint{}
	for rows.Next() {
		var p model.ScatterPoint
		if err := rows.Scan(&p.Name, &p.Rating, &p.Installs, &p.Price); err != nil {
			return nil, false, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if len(points) <= s.cfg.SampleCap {
		return points, false, nil
	}
	return sampleSeries(points, s.cfg.SampleCap, s.rng()), true, nil
}

// sentimentDistribution aggregates review labels for in-scope apps.
// The category filter is applied through an app-name membership test,
// never a row-wise fact join, so review counts stay exact and fact rows
// never multiply. Unlabeled reviews are excluded from the distribution.
func (s *Service) sentimentDistribution(ctx context.Context, category string) ([]model.SentimentCount, error) {
	q := `
		SELECT sr.review_sentiment, COUNT(*) AS n
		FROM ` + warehouse.TableStgReviews + ` sr
		WHERE sr.review_sentiment <> ''
		  AND sr.app_name IN (
			SELECT da.app_name
			FROM ` + warehouse.TableFact + ` fm
			JOIN ` + warehouse.TableDimApps + ` da USING (app_id)
			JOIN ` + warehouse.TableDimCats + ` dc USING (category_id)
			WHERE ` + categoryFilter + `
		  )
		GROUP BY sr.review_sentiment
		ORDER BY n DESC, sr.review_sentiment`

	rows, err := s.db.Query(ctx, q, category, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []model.SentimentCount{}
	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts = append(counts, model.SentimentCount{
			Sentiment: model.ParseSentiment(label),
			Count:     n,
		})
	}
	return counts, rows.Err()
}

// Categories lists the dimension's categories for the filter dropdown.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if err := s.db.VerifySchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		"SELECT app_category FROM "+warehouse.TableDimCats+" ORDER BY app_category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Service) rng() *rand.Rand {
	seed := s.cfg.SampleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// sampleSeries is Algorithm R reservoir sampling: a uniform sample of
// exactly k points from the series.
func sampleSeries(points []model.ScatterPoint, k int, rng *rand.Rand) []model.ScatterPoint {
	if len(points) <= k {
		return points
	}
	reservoir := make([]model.ScatterPoint, k)
	copy(reservoir, points[:k])
	for i := k; i < len(points); i++ {
		j := rng.Intn(i + 1)
		if j < k {
			reservoir[j] = points[i]
		}
	}
	return reservoir
}
