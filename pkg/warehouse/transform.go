package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// TransformResult reports per-table row counts for one transform run.
type TransformResult struct {
	Rows     map[string]int64
	Duration time.Duration
}

// Transform rebuilds the four warehouse tables from the two seed
// snapshots inside one transaction: either the new star schema lands
// completely or the previous generation stays queryable. The run is
// idempotent; re-running with the same seeds produces the same tables.
//
// Surrogate ids are assigned deterministically (ordered window functions
// over names and categories), so repeated runs keep stable ids for
// unchanged input.
func Transform(ctx context.Context, warehousePath, appsSeedPath, reviewsSeedPath string) (*TransformResult, error) {
	start := time.Now()
	logger := slog.Default().With("component", "warehouse.transform")

	db, err := sql.Open("duckdb", warehousePath)
	if err != nil {
		return nil, fmt.Errorf("open warehouse for transform: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transform transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []struct {
		name string
		sql  string
	}{
		{"src_apps", srcAppsSQL(appsSeedPath)},
		{TableStgReviews, stgReviewsSQL(reviewsSeedPath)},
		{TableDimCats, dimCategoriesSQL},
		{TableDimApps, dimAppsSQL},
		{TableFact, factSQL},
	}
	for _, st := range statements {
		if _, err := tx.ExecContext(ctx, st.sql); err != nil {
			return nil, fmt.Errorf("build %s: %w", st.name, err)
		}
	}

	result := &TransformResult{Rows: make(map[string]int64)}
	for _, table := range []string{TableFact, TableDimApps, TableDimCats, TableStgReviews} {
		var n int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		result.Rows[table] = n
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS src_apps"); err != nil {
		return nil, fmt.Errorf("drop staging table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transform transaction: %w", err)
	}

	result.Duration = time.Since(start)
	logger.Info("warehouse rebuilt",
		"facts", result.Rows[TableFact],
		"apps", result.Rows[TableDimApps],
		"categories", result.Rows[TableDimCats],
		"reviews", result.Rows[TableStgReviews],
		"duration", result.Duration)
	return result, nil
}

// srcAppsSQL stages the apps seed, typed and deduplicated to one row per
// app name. The dedupe keeps the row with the highest review count so a
// fact row is traceable to exactly one raw record.
func srcAppsSQL(seedPath string) string {
	return `
CREATE OR REPLACE TABLE src_apps AS
SELECT app, category, rating, reviews, size, installs, price, last_updated
FROM (
	SELECT
		app,
		COALESCE(category, 'UNKNOWN') AS category,
		COALESCE(TRY_CAST(rating AS DOUBLE), 0.0) AS rating,
		COALESCE(TRY_CAST(reviews AS BIGINT), 0) AS reviews,
		size,
		COALESCE(TRY_CAST(installs AS BIGINT), 0) AS installs,
		COALESCE(TRY_CAST(price AS DOUBLE), 0.0) AS price,
		last_updated,
		ROW_NUMBER() OVER (
			PARTITION BY app
			ORDER BY TRY_CAST(reviews AS BIGINT) DESC NULLS LAST
		) AS rn
	FROM read_csv(` + quoteLiteral(seedPath) + `, header = true, all_varchar = true)
	WHERE app IS NOT NULL AND app <> ''
)
WHERE rn = 1`
}

func stgReviewsSQL(seedPath string) string {
	return `
CREATE OR REPLACE TABLE ` + TableStgReviews + ` AS
SELECT
	app AS app_name,
	translated_review AS review_text,
	COALESCE(sentiment, '') AS review_sentiment,
	COALESCE(TRY_CAST(sentiment_polarity AS DOUBLE), 0.0) AS sentiment_polarity,
	COALESCE(TRY_CAST(sentiment_subjectivity AS DOUBLE), 0.0) AS sentiment_subjectivity
FROM read_csv(` + quoteLiteral(seedPath) + `, header = true, all_varchar = true)
WHERE app IS NOT NULL AND app <> ''`
}

const dimCategoriesSQL = `
CREATE OR REPLACE TABLE ` + TableDimCats + ` AS
SELECT
	ROW_NUMBER() OVER (ORDER BY category) AS category_id,
	category AS app_category
FROM (SELECT DISTINCT category FROM src_apps)`

// dimAppsSQL converts display sizes ("19M", "201k", "Varies with device")
// to bytes where possible and parses the catalog's "January 7, 2018"
// date format; both fall back to NULL rather than failing the build.
const dimAppsSQL = `
CREATE OR REPLACE TABLE ` + TableDimApps + ` AS
SELECT
	ROW_NUMBER() OVER (ORDER BY app) AS app_id,
	app AS app_name,
	CASE
		WHEN size LIKE '%M' THEN CAST(TRY_CAST(SUBSTR(size, 1, LENGTH(size) - 1) AS DOUBLE) * 1024 * 1024 AS BIGINT)
		WHEN size LIKE '%k' THEN CAST(TRY_CAST(SUBSTR(size, 1, LENGTH(size) - 1) AS DOUBLE) * 1024 AS BIGINT)
		ELSE NULL
	END AS app_size_bytes,
	CAST(TRY_STRPTIME(last_updated, '%B %-d, %Y') AS DATE) AS last_updated_date
FROM src_apps`

const factSQL = `
CREATE OR REPLACE TABLE ` + TableFact + ` AS
SELECT
	da.app_id,
	dc.category_id,
	s.price AS app_price,
	s.rating AS average_user_rating,
	s.installs AS total_installs,
	s.reviews AS total_reviews
FROM src_apps s
JOIN ` + TableDimApps + ` da ON da.app_name = s.app
JOIN ` + TableDimCats + ` dc ON dc.app_category = s.category`
