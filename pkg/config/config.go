// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apppulse/apppulse/pkg/store"
)

// Config holds all AppPulse configuration.
type Config struct {
	Version int `yaml:"version"`

	Sources   SourcesConfig          `yaml:"sources"`
	Postgres  store.RelationalConfig `yaml:"postgres"`
	Redis     store.DocumentConfig   `yaml:"redis"`
	Seeds     SeedsConfig            `yaml:"seeds"`
	Warehouse WarehouseConfig        `yaml:"warehouse"`
	Server    ServerConfig           `yaml:"server"`
	Query     QueryConfig            `yaml:"query"`
	Pipeline  PipelineConfig         `yaml:"pipeline"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
}

// SourcesConfig locates the raw input files.
type SourcesConfig struct {
	AppsCSV    string `yaml:"apps_csv"`
	ReviewsCSV string `yaml:"reviews_csv"`
}

// SeedsConfig controls snapshot output.
type SeedsConfig struct {
	Dir string `yaml:"dir"`
}

// WarehouseConfig locates the DuckDB database.
type WarehouseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// QueryConfig tunes the aggregation layer.
type QueryConfig struct {
	TopN      int `yaml:"top_n"`
	SampleCap int `yaml:"sample_cap"`
}

// PipelineConfig tunes stage retry budgets.
type PipelineConfig struct {
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	pulseDir := filepath.Join(homeDir, ".apppulse")

	return &Config{
		Version: 1,
		Sources: SourcesConfig{
			AppsCSV:    filepath.Join("data", "google_play_apps.csv"),
			ReviewsCSV: filepath.Join("data", "googleplaystore_user_reviews.csv"),
		},
		Postgres: store.RelationalConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "apppulse",
			Password:       "apppulse",
			Database:       "apppulse_apps",
			SSLMode:        "disable",
			ConnectTimeout: 10 * time.Second,
		},
		Redis: store.DefaultDocumentConfig("localhost:6379"),
		Seeds: SeedsConfig{
			Dir: filepath.Join(pulseDir, "seeds"),
		},
		Warehouse: WarehouseConfig{
			Path: filepath.Join(pulseDir, "warehouse", "apppulse.duckdb"),
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8050,
			CORSOrigins: []string{"*"},
		},
		Query: QueryConfig{
			TopN:      10,
			SampleCap: 2000,
		},
		Pipeline: PipelineConfig{
			Retries: 2,
			Backoff: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()

	// Load from paths in order (later overrides earlier)
	paths := m.getConfigPaths()
	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but report errors for existing files
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	// Override with environment variables
	m.loadEnv()

	// Ensure directories exist
	m.ensureDirs()

	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/apppulse/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".apppulse", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".apppulse.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Sources
	if src.Sources.AppsCSV != "" {
		m.config.Sources.AppsCSV = src.Sources.AppsCSV
	}
	if src.Sources.ReviewsCSV != "" {
		m.config.Sources.ReviewsCSV = src.Sources.ReviewsCSV
	}

	// Postgres
	if src.Postgres.Host != "" {
		m.config.Postgres.Host = src.Postgres.Host
	}
	if src.Postgres.Port != 0 {
		m.config.Postgres.Port = src.Postgres.Port
	}
	if src.Postgres.User != "" {
		m.config.Postgres.User = src.Postgres.User
	}
	if src.Postgres.Password != "" {
		m.config.Postgres.Password = src.Postgres.Password
	}
	if src.Postgres.Database != "" {
		m.config.Postgres.Database = src.Postgres.Database
	}
	if src.Postgres.SSLMode != "" {
		m.config.Postgres.SSLMode = src.Postgres.SSLMode
	}
	if src.Postgres.ConnectTimeout != 0 {
		m.config.Postgres.ConnectTimeout = src.Postgres.ConnectTimeout
	}

	// Redis
	if src.Redis.Address != "" {
		m.config.Redis.Address = src.Redis.Address
	}
	if src.Redis.Password != "" {
		m.config.Redis.Password = src.Redis.Password
	}
	if src.Redis.Database != 0 {
		m.config.Redis.Database = src.Redis.Database
	}
	if src.Redis.Prefix != "" {
		m.config.Redis.Prefix = src.Redis.Prefix
	}
	if src.Redis.Timeout != 0 {
		m.config.Redis.Timeout = src.Redis.Timeout
	}

	// Seeds / warehouse
	if src.Seeds.Dir != "" {
		m.config.Seeds.Dir = src.Seeds.Dir
	}
	if src.Warehouse.Path != "" {
		m.config.Warehouse.Path = src.Warehouse.Path
	}

	// Server
	if src.Server.Host != "" {
		m.config.Server.Host = src.Server.Host
	}
	if src.Server.Port != 0 {
		m.config.Server.Port = src.Server.Port
	}
	if len(src.Server.CORSOrigins) > 0 {
		m.config.Server.CORSOrigins = src.Server.CORSOrigins
	}

	// Query
	if src.Query.TopN != 0 {
		m.config.Query.TopN = src.Query.TopN
	}
	if src.Query.SampleCap != 0 {
		m.config.Query.SampleCap = src.Query.SampleCap
	}

	// Pipeline
	if src.Pipeline.Retries != 0 {
		m.config.Pipeline.Retries = src.Pipeline.Retries
	}
	if src.Pipeline.Backoff != 0 {
		m.config.Pipeline.Backoff = src.Pipeline.Backoff
	}

	// Telemetry
	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("APPPULSE_POSTGRES_HOST"); v != "" {
		m.config.Postgres.Host = v
	}
	if v := os.Getenv("APPPULSE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			m.config.Postgres.Port = port
		}
	}
	if v := os.Getenv("APPPULSE_POSTGRES_USER"); v != "" {
		m.config.Postgres.User = v
	}
	if v := os.Getenv("APPPULSE_POSTGRES_PASSWORD"); v != "" {
		m.config.Postgres.Password = v
	}
	if v := os.Getenv("APPPULSE_POSTGRES_DB"); v != "" {
		m.config.Postgres.Database = v
	}
	if v := os.Getenv("APPPULSE_REDIS_ADDR"); v != "" {
		m.config.Redis.Address = v
	}
	if v := os.Getenv("APPPULSE_WAREHOUSE"); v != "" {
		m.config.Warehouse.Path = v
	}
	if v := os.Getenv("APPPULSE_SEEDS_DIR"); v != "" {
		m.config.Seeds.Dir = v
	}
	if v := os.Getenv("APPPULSE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			m.config.Server.Port = port
		}
	}
	if v := os.Getenv("APPPULSE_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Enabled = true
		m.config.Telemetry.Endpoint = v
	}
}

// ensureDirs creates necessary directories.
func (m *Manager) ensureDirs() {
	dirs := []string{
		m.config.Seeds.Dir,
		filepath.Dir(m.config.Warehouse.Path),
	}

	for _, dir := range dirs {
		os.MkdirAll(dir, 0o755)
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".apppulse")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0o644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.Load()
	})
	return globalManager
}
