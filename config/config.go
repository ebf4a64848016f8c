// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/subsquid/archive-gateway/log"
)

const (
	// DefaultMaxLimit is the largest number of blocks a single batch request may ask for.
	DefaultMaxLimit = 1000
	// DefaultLoaderWait is the default key-collection window of the block loaders.
	DefaultLoaderWait = time.Millisecond
	// DefaultMetadataCacheSize is the default number of metadata records kept in memory.
	DefaultMetadataCacheSize = 256
)

// Config contains the CLI configuration.
type Config struct {
	Server  *ServerConfig  `koanf:"server"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
	Pprof   *PprofConfig   `koanf:"pprof"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if cfg.Pprof != nil {
		if err := cfg.Pprof.Validate(); err != nil {
			return fmt.Errorf("pprof: %w", err)
		}
	}

	return nil
}

// ServerConfig contains the API server configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`

	Storage *StorageConfig `koanf:"storage"`

	// EVMSupport enables the `evmLogs` and `ethereumTransactions` selections.
	EVMSupport bool `koanf:"evm_support"`
	// ContractsSupport enables the `contractsEvents` selection.
	ContractsSupport bool `koanf:"contracts_support"`
	// IncludeCallEvents makes every event emitted by a selected call part
	// of the response, even when no event selection matches it.
	IncludeCallEvents bool `koanf:"include_call_events"`

	// RequestTimeout bounds the handling time of a single request. Zero means no timeout.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// MaxLimit is the maximum `limit` of a batch request.
	MaxLimit int `koanf:"max_limit"`

	// LoaderWait is how long the block loaders collect keys before hitting storage.
	// Zero selects DefaultLoaderWait.
	LoaderWait time.Duration `koanf:"loader_wait"`
	// LoaderMaxBatch caps the number of block ids per storage call. Zero means unbounded.
	LoaderMaxBatch int `koanf:"loader_max_batch"`

	// MetadataCacheSize is the number of runtime metadata records cached in memory.
	MetadataCacheSize int64 `koanf:"metadata_cache_size"`

	// CORSOrigins lists the allowed cross-origin request origins. Empty allows all.
	CORSOrigins []string `koanf:"cors_origins"`
}

// Validate validates the server configuration and fills in defaults.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("negative request_timeout %v", cfg.RequestTimeout)
	}
	if cfg.LoaderWait < 0 {
		return fmt.Errorf("negative loader_wait %v", cfg.LoaderWait)
	}
	if cfg.LoaderWait == 0 {
		cfg.LoaderWait = DefaultLoaderWait
	}
	if cfg.LoaderMaxBatch < 0 {
		return fmt.Errorf("negative loader_max_batch %d", cfg.LoaderMaxBatch)
	}
	switch {
	case cfg.MaxLimit < 0:
		return fmt.Errorf("negative max_limit %d", cfg.MaxLimit)
	case cfg.MaxLimit == 0:
		cfg.MaxLimit = DefaultMaxLimit
	}
	switch {
	case cfg.MetadataCacheSize < 0:
		return fmt.Errorf("negative metadata_cache_size %d", cfg.MetadataCacheSize)
	case cfg.MetadataCacheSize == 0:
		cfg.MetadataCacheSize = DefaultMetadataCacheSize
	}

	return cfg.Storage.Validate()
}

// StorageBackend is a storage backend.
type StorageBackend uint

const (
	// BackendPostgres is the PostgreSQL storage backend.
	BackendPostgres StorageBackend = iota
	// BackendInMemory is the in-memory storage backend.
	BackendInMemory
)

// String returns the string representation of a StorageBackend.
func (sb *StorageBackend) String() string {
	switch *sb {
	case BackendPostgres:
		return "postgres"
	case BackendInMemory:
		return "inmemory"
	default:
		panic("config: unsupported storage backend")
	}
}

// Set sets the StorageBackend to the value specified by the provided string.
func (sb *StorageBackend) Set(s string) error {
	switch strings.ToLower(s) {
	case "postgres":
		*sb = BackendPostgres
	case "inmemory":
		*sb = BackendInMemory
	default:
		return fmt.Errorf("config: invalid storage backend: '%s'", s)
	}

	return nil
}

// Type returns the list of supported StorageBackends.
func (sb *StorageBackend) Type() string {
	return "[postgres,inmemory]"
}

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	// Endpoint is the storage endpoint from which to read archive data.
	Endpoint string `koanf:"endpoint"`

	// Backend is the storage backend to select. The inmemory backend serves an
	// empty archive; it exists to run the service without a database, e.g. in
	// tests and smoke checks.
	Backend string `koanf:"backend"`

	// Migrations is the directory containing the archive schema migrations.
	// If set, pending migrations are applied on startup. Meant for local
	// setups; in production the archive schema is owned by the indexer.
	Migrations string `koanf:"migrations"`
}

// Validate validates the storage configuration.
func (cfg *StorageConfig) Validate() error {
	var sb StorageBackend
	if err := sb.Set(cfg.Backend); err != nil {
		return err
	}
	if sb == BackendPostgres && cfg.Endpoint == "" {
		return fmt.Errorf("malformed storage endpoint '%s'", cfg.Endpoint)
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// PprofConfig contains the profiling endpoint configuration.
type PprofConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// Validate validates the pprof configuration.
func (cfg *PprofConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed pprof endpoint '%s'", cfg.Endpoint)
	}
	return nil
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f), env.Provider("", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}))
}

func initConfig(p koanf.Provider, overrides ...koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	for _, o := range overrides {
		if err := k.Load(o, nil); err != nil {
			return nil, err
		}
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
