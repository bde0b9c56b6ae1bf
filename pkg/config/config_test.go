package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Server.Port != 8050 {
		t.Errorf("expected default port 8050, got %d", cfg.Server.Port)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected postgres port 5432, got %d", cfg.Postgres.Port)
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("expected redis on localhost:6379, got %q", cfg.Redis.Address)
	}
	if cfg.Query.TopN != 10 || cfg.Query.SampleCap != 2000 {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
	if cfg.Pipeline.Retries != 2 || cfg.Pipeline.Backoff != 3*time.Second {
		t.Errorf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry must be off by default")
	}
}

func TestMerge(t *testing.T) {
	m := NewManager()

	m.merge(&Config{
		Sources:   SourcesConfig{AppsCSV: "custom/apps.csv"},
		Server:    ServerConfig{Port: 3000},
		Query:     QueryConfig{TopN: 5},
		Telemetry: TelemetryConfig{Enabled: true, Endpoint: "collector:4317"},
	})

	cfg := m.Get()
	if cfg.Sources.AppsCSV != "custom/apps.csv" {
		t.Errorf("apps csv not merged: %q", cfg.Sources.AppsCSV)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port not merged: %d", cfg.Server.Port)
	}
	if cfg.Query.TopN != 5 {
		t.Errorf("top-n not merged: %d", cfg.Query.TopN)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("telemetry not merged: %+v", cfg.Telemetry)
	}

	// Zero values leave defaults alone.
	if cfg.Sources.ReviewsCSV == "" {
		t.Error("unset merge field wiped a default")
	}
	if cfg.Postgres.Host != "localhost" {
		t.Errorf("postgres host changed by empty merge: %q", cfg.Postgres.Host)
	}
	if cfg.Query.SampleCap != 2000 {
		t.Errorf("sample cap changed by empty merge: %d", cfg.Query.SampleCap)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("APPPULSE_POSTGRES_HOST", "db.internal")
	t.Setenv("APPPULSE_POSTGRES_PORT", "5433")
	t.Setenv("APPPULSE_REDIS_ADDR", "cache.internal:6379")
	t.Setenv("APPPULSE_PORT", "9000")
	t.Setenv("APPPULSE_OTLP_ENDPOINT", "collector:4317")

	m := NewManager()
	m.loadEnv()

	cfg := m.Get()
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host not loaded: %q", cfg.Postgres.Host)
	}
	if cfg.Postgres.Port != 5433 {
		t.Errorf("postgres port not loaded: %d", cfg.Postgres.Port)
	}
	if cfg.Redis.Address != "cache.internal:6379" {
		t.Errorf("redis address not loaded: %q", cfg.Redis.Address)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server port not loaded: %d", cfg.Server.Port)
	}

	// Pointing an OTLP endpoint implies enabling telemetry.
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("telemetry not enabled via endpoint: %+v", cfg.Telemetry)
	}
}

func TestLoadEnv_BadPortIgnored(t *testing.T) {
	t.Setenv("APPPULSE_PORT", "not-a-number")

	m := NewManager()
	m.loadEnv()

	if m.Get().Server.Port != 8050 {
		t.Errorf("malformed port must keep default, got %d", m.Get().Server.Port)
	}
}

func TestGlobalSingleton(t *testing.T) {
	a := Global()
	b := Global()
	if a != b {
		t.Error("Global must return the same manager")
	}
}
