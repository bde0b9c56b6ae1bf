// Package warehouse owns the DuckDB analytical store: a read-only query
// handle with schema verification for the aggregation layer, and the
// transform runner that rebuilds the star schema from seed snapshots.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/apppulse/apppulse/pkg/apperrors"
)

// The four tables the query layer reads. Regenerated entirely by the
// transform; the query side never mutates them. Changing a column set
// here is a breaking contract change for both sides.
const (
	TableFact       = "fact_app_metrics"
	TableDimApps    = "dim_apps"
	TableDimCats    = "dim_categories"
	TableStgReviews = "stg_reviews"
)

// RequiredColumns is the expected column set per warehouse table.
var RequiredColumns = map[string][]string{
	TableFact:       {"app_id", "category_id", "app_price", "average_user_rating", "total_installs", "total_reviews"},
	TableDimApps:    {"app_id", "app_name", "app_size_bytes", "last_updated_date"},
	TableDimCats:    {"category_id", "app_category"},
	TableStgReviews: {"app_name", "review_text", "review_sentiment", "sentiment_polarity", "sentiment_subjectivity"},
}

// DB is a warehouse handle. The query layer holds one for its lifetime;
// reload is an administrative reopen, never implicit per-request state.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens the warehouse database file. With readOnly set, DuckDB
// refuses writes at the driver level, which is what the query layer wants.
func Open(path string, readOnly bool) (*DB, error) {
	dsn := path
	if readOnly {
		dsn += "?access_mode=read_only"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnection, "open warehouse", err).
			WithContext("path", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnection, "warehouse unreachable", err).
			WithContext("path", path)
	}
	return &DB{sql: db, path: path}, nil
}

// Close releases the handle.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Query runs a read query.
func (d *DB) Query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, q, args...)
}

// QueryRow runs a single-row read query.
func (d *DB) QueryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, q, args...)
}

// VerifySchema checks that all four warehouse tables exist with their
// expected columns. Failure means the transform has not completed (or the
// contract drifted); callers surface it as a pipeline-incomplete state,
// not a crash.
func (d *DB) VerifySchema(ctx context.Context) error {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = 'main'`)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConnection, "read warehouse schema", err)
	}
	defer rows.Close()

	have := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("scan schema row: %w", err)
		}
		if have[table] == nil {
			have[table] = make(map[string]bool)
		}
		have[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema rows: %w", err)
	}

	var problems []string
	for table, cols := range RequiredColumns {
		got, ok := have[table]
		if !ok {
			problems = append(problems, "missing table "+table)
			continue
		}
		for _, col := range cols {
			if !got[col] {
				problems = append(problems, fmt.Sprintf("table %s missing column %s", table, col))
			}
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return apperrors.New(apperrors.CodeSchemaMismatch,
			"warehouse schema incomplete: "+strings.Join(problems, "; "))
	}
	return nil
}

// quoteLiteral escapes a string for embedding in DuckDB SQL. DuckDB does
// not bind parameters inside DDL, so file paths are inlined.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
