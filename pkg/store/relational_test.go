package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/apppulse/apppulse/internal/model"
)

func mockRelational(t *testing.T) (*Relational, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Relational{db: db, logger: slog.Default()}, mock
}

func expectAppsDDL(mock sqlmock.Sqlmock) {
	mock.ExpectExec("DROP TABLE IF EXISTS apps_raw").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE apps_raw").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectRowInserted(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`^SAVEPOINT app_row$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO apps_raw").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^RELEASE SAVEPOINT app_row$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectRowSkipped(mock sqlmock.Sqlmock, cause error) {
	mock.ExpectExec(`^SAVEPOINT app_row$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO apps_raw").
		WillReturnError(cause)
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT app_row$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// A poisoned row in the per-record fallback must roll back only its own
// subtransaction: the surrounding rows still commit and the returned
// count reflects what actually landed.
func TestInsertAppsRowwise_SkipsPoisonedRow(t *testing.T) {
	s, mock := mockRelational(t)

	mock.ExpectBegin()
	expectAppsDDL(mock)
	mock.ExpectPrepare("INSERT INTO apps_raw")

	expectRowInserted(mock)
	expectRowSkipped(mock, errors.New("value too long for type"))
	expectRowInserted(mock)
	mock.ExpectCommit()

	records := []model.AppRecord{
		{Name: "Alpha", Installs: 1000},
		{Name: "Poisoned", Installs: 500},
		{Name: "Gamma", Installs: 2000},
	}
	inserted, err := s.insertAppsRowwise(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("insertAppsRowwise: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertAppsRowwise_ProgressCountsLanded(t *testing.T) {
	s, mock := mockRelational(t)

	mock.ExpectBegin()
	expectAppsDDL(mock)
	mock.ExpectPrepare("INSERT INTO apps_raw")
	expectRowSkipped(mock, errors.New("invalid byte sequence"))
	expectRowInserted(mock)
	mock.ExpectCommit()

	var last int
	records := []model.AppRecord{
		{Name: "Poisoned", Installs: 1},
		{Name: "Beta", Installs: 2},
	}
	inserted, err := s.insertAppsRowwise(context.Background(), records, func(n int) { last = n })
	if err != nil {
		t.Fatalf("insertAppsRowwise: %v", err)
	}
	if inserted != 1 || last != 1 {
		t.Errorf("inserted = %d, last progress = %d, want 1 and 1", inserted, last)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// When the COPY path fails, the failed transaction must be rolled back
// before the fallback begins: the aborted transaction holds the table
// lock from its DDL, and the fallback re-runs that DDL on another
// connection. The ordered expectations pin the rollback-before-begin
// sequence.
func TestReplaceApps_CopyFailureRollsBackBeforeFallback(t *testing.T) {
	s, mock := mockRelational(t)

	mock.ExpectBegin()
	expectAppsDDL(mock)
	mock.ExpectPrepare(`COPY "apps_raw"`).
		WillReturnError(errors.New("driver: bad connection state"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectAppsDDL(mock)
	mock.ExpectPrepare("INSERT INTO apps_raw")
	expectRowInserted(mock)
	mock.ExpectCommit()

	inserted, err := s.ReplaceApps(context.Background(),
		[]model.AppRecord{{Name: "Alpha", Installs: 1000}}, nil)
	if err != nil {
		t.Fatalf("ReplaceApps: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReplaceApps_CopyPathCommits(t *testing.T) {
	s, mock := mockRelational(t)

	mock.ExpectBegin()
	expectAppsDDL(mock)
	prep := mock.ExpectPrepare(`COPY "apps_raw"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := s.ReplaceApps(context.Background(),
		[]model.AppRecord{{Name: "Alpha", Installs: 1000}}, nil)
	if err != nil {
		t.Fatalf("ReplaceApps: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
