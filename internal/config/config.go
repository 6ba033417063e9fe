// Package config loads the runtime configuration from HCL: source and
// target connections, the job store, and engine tuning.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the runtime configuration for the tablecast binaries.
type Config struct {
	// Source is the relational database rows are read from.
	Source *SourceConfig `hcl:"source,block"`

	// Target is the search backend documents are written to.
	Target *TargetConfig `hcl:"target,block"`

	// JobStore is where migration job records live.
	JobStore *JobStoreConfig `hcl:"job_store,block"`

	// DeadLetterDir is where failed records are filed.
	DeadLetterDir string `hcl:"dead_letter_dir,optional"`

	// MappingDir is where YAML mapping configurations live.
	MappingDir string `hcl:"mapping_dir,optional"`

	// LogLevel is an hclog level name (trace, debug, info, warn, error).
	LogLevel string `hcl:"log_level,optional"`
}

// SourceConfig describes the source database connection.
type SourceConfig struct {
	// Driver is a database/sql driver name; "pgx" for postgres.
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn"`
}

// TargetConfig describes the target search backend.
type TargetConfig struct {
	// Backend is "meilisearch" or "bleve".
	Backend string `hcl:"backend,label"`

	// Host and APIKey configure meilisearch.
	Host   string `hcl:"host,optional"`
	APIKey string `hcl:"api_key,optional"`

	// Path is the bleve index directory; empty means in-memory.
	Path string `hcl:"path,optional"`
}

// JobStoreConfig describes the job store database. Exactly one of the
// postgres fields or SQLitePath is used.
type JobStoreConfig struct {
	Host       string `hcl:"host,optional"`
	Port       int    `hcl:"port,optional"`
	User       string `hcl:"user,optional"`
	Password   string `hcl:"password,optional"`
	DBName     string `hcl:"dbname,optional"`
	SSLMode    string `hcl:"sslmode,optional"`
	SQLitePath string `hcl:"sqlite_path,optional"`
}

// Load reads and validates an HCL configuration file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file not found: %w", err)
	}
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DeadLetterDir == "" {
		cfg.DeadLetterDir = "failed_records"
	}
	if cfg.MappingDir == "" {
		cfg.MappingDir = "mappings"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Source != nil && cfg.Source.Driver == "" {
		cfg.Source.Driver = "pgx"
	}
	if cfg.JobStore != nil {
		if cfg.JobStore.Port == 0 {
			cfg.JobStore.Port = 5432
		}
		if cfg.JobStore.SSLMode == "" {
			cfg.JobStore.SSLMode = "disable"
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Source == nil || cfg.Source.DSN == "" {
		return fmt.Errorf("configuration requires a source block with a dsn")
	}
	if cfg.Target == nil {
		return fmt.Errorf("configuration requires a target block")
	}
	switch cfg.Target.Backend {
	case "meilisearch":
		if cfg.Target.Host == "" {
			return fmt.Errorf("meilisearch target requires a host")
		}
	case "bleve":
	default:
		return fmt.Errorf("unknown target backend %q", cfg.Target.Backend)
	}
	if cfg.JobStore == nil {
		return fmt.Errorf("configuration requires a job_store block")
	}
	if cfg.JobStore.SQLitePath == "" && cfg.JobStore.Host == "" {
		return fmt.Errorf("job_store requires either postgres settings or a sqlite_path")
	}
	return nil
}
