// Package config loads indexer configuration from an optional YAML file,
// environment variables, and CLI flags, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roninchain/indexer/internal/constants"
)

// Config holds all configuration for the indexer.
type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	API      APIConfig      `yaml:"api"`
}

// RPCConfig holds blockchain RPC client configuration.
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds persistence gateway configuration.
type DatabaseConfig struct {
	URI  string `yaml:"uri"`
	Name string `yaml:"name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// FeatureFlags mirror the walker's optional per-transaction work. They are
// read from the config file but not applied: cmd/indexer takes the walker's
// features from the --feature-* flags alone.
type FeatureFlags struct {
	ERCTransfers bool `yaml:"erc_transfers"`
	ERC721Sales  bool `yaml:"erc_721_sales"`
	Transactions bool `yaml:"transactions"`
	WalletUpdate bool `yaml:"wallet_updates"`
}

// IndexerConfig holds indexer-specific configuration.
type IndexerConfig struct {
	StartBlock uint64       `yaml:"start_block"`
	StopBlock  uint64       `yaml:"stop_block"`
	Threads    int          `yaml:"threads"`
	Replay     bool         `yaml:"replay"`
	EmptyLogs  bool         `yaml:"empty_logs"`
	Features   FeatureFlags `yaml:"features"`
}

// APIConfig holds the ops HTTP server configuration (metrics/health only).
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// NewConfig creates a new Config populated with default values.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	if c.RPC.Endpoint == "" {
		c.RPC.Endpoint = "ws://localhost:8546"
	}
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultQueryTimeout
	}
	if c.Database.URI == "" {
		// --db-uri keeps its name from the document-store-oriented CLI
		// surface but names a Pebble directory, not a connection URI.
		c.Database.URI = "./data/roninchain"
	}
	if c.Database.Name == "" {
		c.Database.Name = "roninchain"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Indexer.StartBlock == 0 {
		c.Indexer.StartBlock = constants.DefaultStartBlock
	}
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
}

// LoadFromFile loads configuration from a YAML file, overlaying whatever is
// already set.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays INDEXER_* environment variables onto the config.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("INDEXER_RPC_ENDPOINT"); v != "" {
		c.RPC.Endpoint = v
	}
	if v := os.Getenv("INDEXER_RPC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = d
	}
	if v := os.Getenv("INDEXER_DB_URI"); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv("INDEXER_DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("INDEXER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("INDEXER_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_DEBUG: %w", err)
		}
		c.Log.Debug = b
	}
	if v := os.Getenv("INDEXER_START_BLOCK"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_START_BLOCK: %w", err)
		}
		c.Indexer.StartBlock = n
	}
	if v := os.Getenv("INDEXER_STOP_BLOCK"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_STOP_BLOCK: %w", err)
		}
		c.Indexer.StopBlock = n
	}
	if v := os.Getenv("INDEXER_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_THREADS: %w", err)
		}
		c.Indexer.Threads = n
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	scheme := strings.SplitN(c.RPC.Endpoint, "://", 2)[0]
	switch scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("unsupported rpc endpoint scheme %q", scheme)
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc timeout must be positive")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	if c.Indexer.Threads < 0 {
		return fmt.Errorf("threads must not be negative")
	}
	return nil
}

// Load loads configuration in precedence order: defaults, file, environment,
// then fills any field still empty with its default. It does not call
// Validate; the caller does that once CLI flags are applied. CLI flags are applied by the caller afterwards
// (see cmd/indexer) since flag.Parse must run before Load is able to know
// the config file path.
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	return cfg, nil
}
