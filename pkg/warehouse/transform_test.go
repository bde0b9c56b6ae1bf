package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const appsSeedHeader = "app,category,rating,reviews,size,installs,type,price,content_rating,genres,last_updated,current_ver,android_ver\n"
const reviewsSeedHeader = "app,translated_review,sentiment,sentiment_polarity,sentiment_subjectivity\n"

func writeSeed(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed %s: %v", name, err)
	}
	return path
}

func seedPair(t *testing.T, apps, reviews string) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	appsPath := writeSeed(t, dir, "apps_from_postgres.csv", apps)
	reviewsPath := writeSeed(t, dir, "reviews_from_redis.csv", reviews)
	return filepath.Join(dir, "warehouse.duckdb"), appsPath, reviewsPath
}

func TestTransform_BuildsStarSchema(t *testing.T) {
	apps := appsSeedHeader +
		`Alpha,GAME,4.5,150,19M,1000,Free,0,Everyone,Arcade,"January 7, 2018",1.0,4.0
Beta,GAME,3.0,40,5M,500,Paid,1.99,Everyone,Puzzle,"March 1, 2018",2.0,4.1
Gamma,TOOLS,5.0,900,Varies with device,2000,Free,0,Everyone,Tools,Unknown,1.0,4.0
`
	reviews := reviewsSeedHeader +
		`Alpha,love it,Positive,0.9,0.8
Alpha,crashes,Negative,-0.7,0.9
Gamma,ok,Neutral,0.0,0.1
`
	whPath, appsPath, reviewsPath := seedPair(t, apps, reviews)

	res, err := Transform(context.Background(), whPath, appsPath, reviewsPath)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	want := map[string]int64{
		TableFact:       3,
		TableDimApps:    3,
		TableDimCats:    2,
		TableStgReviews: 3,
	}
	for table, n := range want {
		if res.Rows[table] != n {
			t.Errorf("%s: expected %d rows, got %d", table, n, res.Rows[table])
		}
	}

	db, err := Open(whPath, true)
	if err != nil {
		t.Fatalf("reopen warehouse: %v", err)
	}
	defer db.Close()

	if err := db.VerifySchema(context.Background()); err != nil {
		t.Fatalf("schema verification failed after transform: %v", err)
	}

	// The intermediate staging table must not survive the transaction.
	var stagingTables int
	err = db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'src_apps'`).
		Scan(&stagingTables)
	if err != nil {
		t.Fatalf("query staging table: %v", err)
	}
	if stagingTables != 0 {
		t.Error("src_apps staging table left behind")
	}

	// Display size converts to bytes; "Varies with device" becomes NULL.
	var alphaBytes int64
	err = db.QueryRow(context.Background(),
		`SELECT app_size_bytes FROM dim_apps WHERE app_name = 'Alpha'`).Scan(&alphaBytes)
	if err != nil {
		t.Fatalf("query alpha size: %v", err)
	}
	if alphaBytes != 19*1024*1024 {
		t.Errorf("expected 19M in bytes, got %d", alphaBytes)
	}

	var nullSizes int
	err = db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM dim_apps WHERE app_name = 'Gamma' AND app_size_bytes IS NULL`).
		Scan(&nullSizes)
	if err != nil {
		t.Fatalf("query gamma size: %v", err)
	}
	if nullSizes != 1 {
		t.Error("expected NULL size for 'Varies with device'")
	}
}

func TestTransform_DeduplicatesApps(t *testing.T) {
	// Two catalog rows for the same app; the higher review count wins.
	apps := appsSeedHeader +
		`Alpha,GAME,4.0,50,5M,100,Free,0,Everyone,Arcade,Unknown,1.0,4.0
Alpha,GAME,4.5,150,19M,1000,Free,0,Everyone,Arcade,Unknown,1.0,4.0
`
	reviews := reviewsSeedHeader
	whPath, appsPath, reviewsPath := seedPair(t, apps, reviews)

	res, err := Transform(context.Background(), whPath, appsPath, reviewsPath)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if res.Rows[TableFact] != 1 {
		t.Fatalf("expected 1 fact row after dedupe, got %d", res.Rows[TableFact])
	}

	db, err := Open(whPath, true)
	if err != nil {
		t.Fatalf("reopen warehouse: %v", err)
	}
	defer db.Close()

	var reviewsCount int64
	err = db.QueryRow(context.Background(),
		`SELECT total_reviews FROM fact_app_metrics`).Scan(&reviewsCount)
	if err != nil {
		t.Fatalf("query fact: %v", err)
	}
	if reviewsCount != 150 {
		t.Errorf("dedupe kept wrong row: total_reviews = %d, want 150", reviewsCount)
	}
}

func TestTransform_Idempotent(t *testing.T) {
	apps := appsSeedHeader +
		"Alpha,GAME,4.5,150,19M,1000,Free,0,Everyone,Arcade,Unknown,1.0,4.0\n"
	reviews := reviewsSeedHeader +
		"Alpha,love it,Positive,0.9,0.8\n"
	whPath, appsPath, reviewsPath := seedPair(t, apps, reviews)

	first, err := Transform(context.Background(), whPath, appsPath, reviewsPath)
	if err != nil {
		t.Fatalf("first transform failed: %v", err)
	}
	second, err := Transform(context.Background(), whPath, appsPath, reviewsPath)
	if err != nil {
		t.Fatalf("second transform failed: %v", err)
	}

	for table, n := range first.Rows {
		if second.Rows[table] != n {
			t.Errorf("%s: row count changed across runs (%d -> %d)", table, n, second.Rows[table])
		}
	}
}

func TestTransform_EmptySeeds(t *testing.T) {
	// Header-only seeds build an empty but structurally complete schema.
	whPath, appsPath, reviewsPath := seedPair(t, appsSeedHeader, reviewsSeedHeader)

	res, err := Transform(context.Background(), whPath, appsPath, reviewsPath)
	if err != nil {
		t.Fatalf("Transform failed on empty seeds: %v", err)
	}
	for table, n := range res.Rows {
		if n != 0 {
			t.Errorf("%s: expected 0 rows, got %d", table, n)
		}
	}

	db, err := Open(whPath, true)
	if err != nil {
		t.Fatalf("reopen warehouse: %v", err)
	}
	defer db.Close()
	if err := db.VerifySchema(context.Background()); err != nil {
		t.Errorf("empty warehouse must still pass schema verification: %v", err)
	}
}

func TestVerifySchema_MissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.duckdb")
	db, err := Open(path, false)
	if err != nil {
		t.Fatalf("open fresh warehouse: %v", err)
	}
	defer db.Close()

	if err := db.VerifySchema(context.Background()); err == nil {
		t.Fatal("expected schema error for fresh database")
	}
}
