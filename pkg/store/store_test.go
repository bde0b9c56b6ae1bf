package store

import (
	"strings"
	"testing"
	"time"
)

func TestRelationalDSN(t *testing.T) {
	cfg := RelationalConfig{
		Host:           "db.internal",
		Port:           5433,
		User:           "pulse",
		Password:       "secret",
		Database:       "apps",
		SSLMode:        "require",
		ConnectTimeout: 10 * time.Second,
	}

	dsn := cfg.DSN()
	for _, part := range []string{
		"host=db.internal",
		"port=5433",
		"user=pulse",
		"password=secret",
		"dbname=apps",
		"sslmode=require",
		"connect_timeout=10",
	} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN missing %q: %s", part, dsn)
		}
	}
}

func TestDefaultDocumentConfig(t *testing.T) {
	cfg := DefaultDocumentConfig("localhost:6379")
	if cfg.Prefix != "apppulse:reviews:" {
		t.Errorf("unexpected prefix %q", cfg.Prefix)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("unexpected timeout %v", cfg.Timeout)
	}
	if cfg.PoolSize != 10 {
		t.Errorf("unexpected pool size %d", cfg.PoolSize)
	}
}

// Key layout is a storage contract: changing it orphans every existing
// generation.
func TestDocumentKeys(t *testing.T) {
	s := &Document{cfg: DefaultDocumentConfig("localhost:6379")}

	if got := s.currentKey(); got != "apppulse:reviews:current" {
		t.Errorf("currentKey = %q", got)
	}
	if got := s.genCountKey("abc"); got != "apppulse:reviews:gen:abc:count" {
		t.Errorf("genCountKey = %q", got)
	}
	if got := s.docKey("abc", 7); got != "apppulse:reviews:gen:abc:7" {
		t.Errorf("docKey = %q", got)
	}
}

func TestJoinColumnsAndPlaceholders(t *testing.T) {
	if got := joinColumns([]string{"a", "b", "c"}); got != "a, b, c" {
		t.Errorf("joinColumns = %s", got)
	}
	if got := placeholders(3); got != "$1, $2, $3" {
		t.Errorf("placeholders = %s", got)
	}
}
