// Package base carries the shared state and wiring every CLI command
// needs: the UI, the logger, and the runtime collaborators built from
// the HCL configuration file.
package base

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"gorm.io/gorm"

	"github.com/tablecast/tablecast/internal/config"
	"github.com/tablecast/tablecast/pkg/database"
	"github.com/tablecast/tablecast/pkg/deadletter"
	"github.com/tablecast/tablecast/pkg/models"
	"github.com/tablecast/tablecast/pkg/source"
	"github.com/tablecast/tablecast/pkg/target"
	bleveadapter "github.com/tablecast/tablecast/pkg/target/bleve"
	meiliadapter "github.com/tablecast/tablecast/pkg/target/meilisearch"
)

// Command is embedded by every CLI command.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger
}

// Runtime bundles the collaborators built from one configuration file.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Reader *source.SQLReader
	Writer target.Writer
	DLQ    *deadletter.Store

	log hclog.Logger
}

// Setup loads the configuration and connects every collaborator.
func (c *Command) Setup(configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := c.Log
	if level := hclog.LevelFromString(cfg.LogLevel); level != hclog.NoLevel {
		log.SetLevel(level)
	}

	db, err := openJobStore(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		return nil, fmt.Errorf("failed to migrate job store: %w", err)
	}

	reader, err := source.Open(cfg.Source.Driver, cfg.Source.DSN, log)
	if err != nil {
		return nil, err
	}

	writer, err := openTarget(cfg, log)
	if err != nil {
		reader.Close()
		return nil, err
	}

	dlq, err := deadletter.NewStore(cfg.DeadLetterDir, log)
	if err != nil {
		reader.Close()
		return nil, err
	}

	return &Runtime{
		Config: cfg,
		DB:     db,
		Reader: reader,
		Writer: writer,
		DLQ:    dlq,
		log:    log,
	}, nil
}

// Close releases the runtime's connections.
func (r *Runtime) Close() {
	if err := r.Reader.Close(); err != nil {
		r.log.Warn("failed to close source reader", "error", err)
	}
	if closer, ok := r.Writer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			r.log.Warn("failed to close target writer", "error", err)
		}
	}
}

func openJobStore(cfg *config.Config, log hclog.Logger) (*gorm.DB, error) {
	if cfg.JobStore.SQLitePath != "" {
		return database.ConnectSQLite(cfg.JobStore.SQLitePath, log)
	}
	return database.Connect(database.Config{
		Host:     cfg.JobStore.Host,
		Port:     cfg.JobStore.Port,
		User:     cfg.JobStore.User,
		Password: cfg.JobStore.Password,
		DBName:   cfg.JobStore.DBName,
		SSLMode:  cfg.JobStore.SSLMode,
	}, log)
}

func openTarget(cfg *config.Config, log hclog.Logger) (target.Writer, error) {
	switch cfg.Target.Backend {
	case "meilisearch":
		return meiliadapter.New(cfg.Target.Host, cfg.Target.APIKey, log), nil
	case "bleve":
		return bleveadapter.New(cfg.Target.Path, log), nil
	default:
		return nil, fmt.Errorf("unknown target backend %q", cfg.Target.Backend)
	}
}
