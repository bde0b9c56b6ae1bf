// Package store implements the two operational stores: a relational
// store (PostgreSQL) owning the current generation of app records and a
// document store (Redis) owning the current generation of review records.
// Both expose replace-wholesale semantics; neither accumulates rows
// across reloads.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/apperrors"
)

// AppsTable is the single table the relational store owns.
const AppsTable = "apps_raw"

// RelationalConfig configures the PostgreSQL connection.
type RelationalConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	SSLMode        string        `yaml:"sslmode"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DSN renders the lib/pq connection string.
func (c RelationalConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Relational is the PostgreSQL-backed operational store for app records.
// Connections are scoped per invocation: open, use, Close on every exit
// path. No pooling is shared across pipeline runs.
type Relational struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRelational opens and verifies a PostgreSQL connection.
// An unreachable server is a connection error, fatal to the stage;
// retrying is the scheduler's job.
func OpenRelational(ctx context.Context, cfg RelationalConfig) (*Relational, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnection, "open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnection, "postgres unreachable", err).
			WithContext("host", cfg.Host).
			WithContext("database", cfg.Database)
	}

	return &Relational{
		db:     db,
		logger: slog.Default().With("component", "store.relational"),
	}, nil
}

// Close releases the connection.
func (s *Relational) Close() error {
	return s.db.Close()
}

// Ping reports store reachability.
func (s *Relational) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeConnection, "postgres unreachable", err)
	}
	return nil
}

const createAppsTable = `
CREATE TABLE ` + AppsTable + ` (
	app            TEXT NOT NULL,
	category       TEXT,
	rating         DOUBLE PRECISION,
	reviews        TEXT,
	size           TEXT,
	installs       BIGINT NOT NULL,
	type           TEXT,
	price          TEXT,
	content_rating TEXT,
	genres         TEXT,
	last_updated   TEXT,
	current_ver    TEXT,
	android_ver    TEXT
)`

// ReplaceApps atomically replaces the store's current generation with
// records: drop, recreate, bulk COPY, commit. Running it twice with the
// same input yields the same row count both times.
//
// onProgress, when non-nil, is called with the running insert count.
func (s *Relational) ReplaceApps(ctx context.Context, records []model.AppRecord, onProgress func(n int)) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+AppsTable); err != nil {
		return 0, fmt.Errorf("drop %s: %w", AppsTable, err)
	}
	if _, err := tx.ExecContext(ctx, createAppsTable); err != nil {
		return 0, fmt.Errorf("create %s: %w", AppsTable, err)
	}

	inserted, copyErr := s.copyApps(ctx, tx, records, onProgress)
	if copyErr != nil {
		// COPY aborts the transaction wholesale. Roll it back first: the
		// aborted transaction still holds the table lock from its DDL,
		// and the fallback re-runs that DDL on its own connection.
		tx.Rollback()
		s.logger.Warn("bulk copy failed, falling back to per-record inserts",
			"error", copyErr)
		return s.insertAppsRowwise(ctx, records, onProgress)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace transaction: %w", err)
	}
	return inserted, nil
}

func (s *Relational) copyApps(ctx context.Context, tx *sql.Tx, records []model.AppRecord, onProgress func(int)) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(AppsTable, model.AppColumns...))
	if err != nil {
		return 0, err
	}

	for i := range records {
		vals := records[i].Values()
		if len(vals) != len(model.AppColumns) {
			stmt.Close()
			return 0, apperrors.Newf(apperrors.CodeSchemaMismatch,
				"record has %d fields, schema declares %d",
				len(vals), len(model.AppColumns)).
				WithContext("app", records[i].Name)
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			stmt.Close()
			return 0, err
		}
		if onProgress != nil {
			onProgress(i + 1)
		}
	}

	// Final Exec flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// insertAppsRowwise is the degraded path: one INSERT per record, logging
// and skipping individual failures so one bad row cannot abort the batch.
func (s *Relational) insertAppsRowwise(ctx context.Context, records []model.AppRecord, onProgress func(int)) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin fallback transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+AppsTable); err != nil {
		return 0, fmt.Errorf("drop %s: %w", AppsTable, err)
	}
	if _, err := tx.ExecContext(ctx, createAppsTable); err != nil {
		return 0, fmt.Errorf("create %s: %w", AppsTable, err)
	}

	insert := "INSERT INTO " + AppsTable + " (" + joinColumns(model.AppColumns) + ") VALUES (" + placeholders(len(model.AppColumns)) + ")"
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare fallback insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i := range records {
		vals := records[i].Values()
		if len(vals) != len(model.AppColumns) {
			return 0, apperrors.Newf(apperrors.CodeSchemaMismatch,
				"record has %d fields, schema declares %d",
				len(vals), len(model.AppColumns)).
				WithContext("app", records[i].Name)
		}
		// One savepoint per row: a failed INSERT poisons only its own
		// subtransaction, so the remaining rows still commit.
		if _, err := tx.ExecContext(ctx, "SAVEPOINT app_row"); err != nil {
			return 0, fmt.Errorf("savepoint: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			s.logger.Warn("skipping record", "app", records[i].Name, "error", err)
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT app_row"); err != nil {
				return 0, fmt.Errorf("rollback to savepoint: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT app_row"); err != nil {
			return 0, fmt.Errorf("release savepoint: %w", err)
		}
		inserted++
		if onProgress != nil {
			onProgress(int(inserted))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fallback transaction: %w", err)
	}
	return inserted, nil
}

// CountApps returns the current generation's row count.
func (s *Relational) CountApps(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+AppsTable).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", AppsTable, err)
	}
	return n, nil
}

// FetchApps reads the current generation back in stable (app name) order,
// for seed extraction. Null ratings surface as 0.0.
func (s *Relational) FetchApps(ctx context.Context) ([]model.AppRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+joinColumns(model.AppColumns)+" FROM "+AppsTable+" ORDER BY app, category")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", AppsTable, err)
	}
	defer rows.Close()

	var records []model.AppRecord
	for rows.Next() {
		var rec model.AppRecord
		var rating sql.NullFloat64
		if err := rows.Scan(
			&rec.Name, &rec.Category, &rating, &rec.Reviews, &rec.Size,
			&rec.Installs, &rec.Type, &rec.Price, &rec.ContentRating,
			&rec.Genres, &rec.LastUpdated, &rec.CurrentVer, &rec.AndroidVer,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", AppsTable, err)
		}
		rec.Rating = rating.Float64
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", AppsTable, err)
	}
	return records, nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += fmt.Sprintf("$%d", i)
	}
	return out
}
