package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvSourceBaseURL = "HOARDER_BASE_URL"
	EnvSourceToken   = "HOARDER_TOKEN"
	EnvTargetToken   = "TANA_TOKEN"
	EnvCacheAddress  = "HOARDSYNC_CACHE_ADDRESS"
)

// Supported cache drivers.
const (
	CacheDriverSQLite = "sqlite"
	CacheDriverMemory = "memory"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Target  TargetConfig  `toml:"target"`
	Cache   CacheConfig   `toml:"cache"`
	Backup  BackupConfig  `toml:"backup"`
	Sync    SyncConfig    `toml:"sync"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

// SourceConfig points at the bookmarking service (Hoarder/Karakeep).
type SourceConfig struct {
	BaseURL string        `toml:"base_url"`
	Token   string        `toml:"token"`
	Timeout time.Duration `toml:"timeout"`
}

// TargetConfig points at the Tana input API.
type TargetConfig struct {
	Endpoint          string        `toml:"endpoint"`
	Token             string        `toml:"token"`
	TargetNodeID      string        `toml:"target_node_id"`
	SupertagID        string        `toml:"supertag_id"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// CacheConfig selects and addresses the key-value store holding dedup state.
type CacheConfig struct {
	Driver       string `toml:"driver"`
	Address      string `toml:"address"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// BackupConfig controls cache snapshots.
type BackupConfig struct {
	Dir      string        `toml:"dir"`
	Interval time.Duration `toml:"interval"`
}

// SyncConfig contains batch sizes and daemon timings.
type SyncConfig struct {
	BatchSize           int           `toml:"batch_size"`
	TestSize            int           `toml:"test_size"`
	IncrementalInterval time.Duration `toml:"incremental_interval"`
	CleanupTimeout      time.Duration `toml:"cleanup_timeout"`
}

// ServerConfig contains HTTP status server settings.
type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Enabled bool   `toml:"enabled"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains log level and optional rotated file output.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads a TOML configuration file from path and overlays it onto [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides credentials and addresses with values found through lookup.
//
// lookup is usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSourceBaseURL); ok && v != "" {
		c.Source.BaseURL = v
	}
	if v, ok := lookup(EnvSourceToken); ok && v != "" {
		c.Source.Token = v
	}
	if v, ok := lookup(EnvTargetToken); ok && v != "" {
		c.Target.Token = v
	}
	if v, ok := lookup(EnvCacheAddress); ok && v != "" {
		c.Cache.Address = v
	}
}

// Validate reports the first configuration problem that would prevent a sync.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("%w: source.base_url is required", ErrInvalidConfig)
	}
	if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: source.base_url %q is not an absolute URL", ErrInvalidConfig, c.Source.BaseURL)
	}
	if c.Source.Token == "" {
		return fmt.Errorf("%w: source.token (or %s) is required", ErrMissingCredentials, EnvSourceToken)
	}
	if c.Target.Token == "" {
		return fmt.Errorf("%w: target.token (or %s) is required", ErrMissingCredentials, EnvTargetToken)
	}
	if c.Target.Endpoint == "" {
		return fmt.Errorf("%w: target.endpoint is required", ErrInvalidConfig)
	}
	return c.ValidateCache()
}

// ValidateCache checks only the sections needed to open the cache and snapshot,
// so cache maintenance commands work without service credentials.
func (c *Config) ValidateCache() error {
	switch strings.ToLower(c.Cache.Driver) {
	case CacheDriverSQLite:
		if c.Cache.Address == "" {
			return fmt.Errorf("%w: cache.address is required for the sqlite driver", ErrInvalidConfig)
		}
	case CacheDriverMemory:
	default:
		return fmt.Errorf("%w: unknown cache.driver %q", ErrInvalidConfig, c.Cache.Driver)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("%w: sync.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Sync.TestSize <= 0 {
		return fmt.Errorf("%w: sync.test_size must be positive", ErrInvalidConfig)
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("%w: backup.interval must not be negative", ErrInvalidConfig)
	}
	return nil
}
