// Package migrate implements the `tablecast migrate` command.
package migrate

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tablecast/tablecast/internal/cmd/base"
	"github.com/tablecast/tablecast/pkg/engine"
	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/models"
)

type Command struct {
	*base.Command

	flagConfig   string
	flagMapping  string
	flagStrategy string
}

func (c *Command) Synopsis() string {
	return "Run a migration for a mapping configuration"
}

func (c *Command) Help() string {
	return `Usage: tablecast migrate -config=config.hcl -mapping=orders.yaml [-strategy=full]

  Streams rows from the configured source, transforms them according to
  the mapping configuration, and bulk-loads the documents into the
  target index. Failed records are dead-lettered for later
  reprocessing.

  Strategies:
    full         migrate every row the source query returns (default)
    incremental  only rows past the last recorded watermark
    hybrid       full on first run, incremental afterwards

  Interrupting the process (Ctrl-C) requests a cooperative stop: the
  in-flight batch completes, progress is persisted, and the job ends in
  the stopped state.`
}

func (c *Command) flags() *flag.FlagSet {
	f := flag.NewFlagSet("migrate", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "config.hcl", "Path to the HCL configuration file")
	f.StringVar(&c.flagMapping, "mapping", "", "Path to the YAML mapping configuration")
	f.StringVar(&c.flagStrategy, "strategy", "full", "Migration strategy: full, incremental, or hybrid")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.flags()
	if err := f.Parse(args); err != nil {
		return 1
	}
	if c.flagMapping == "" {
		c.UI.Error("migrate requires -mapping")
		return 1
	}

	strategy := models.MigrationStrategy(c.flagStrategy)
	switch strategy {
	case models.StrategyFull, models.StrategyIncremental, models.StrategyHybrid:
	default:
		c.UI.Error(fmt.Sprintf("unknown strategy %q", c.flagStrategy))
		return 1
	}

	mappingCfg, err := mapping.LoadConfig(c.flagMapping)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	rt, err := c.Setup(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	e, err := engine.New(
		engine.WithConfig(mappingCfg),
		engine.WithStrategy(strategy),
		engine.WithDB(rt.DB),
		engine.WithReader(rt.Reader),
		engine.WithWriter(rt.Writer),
		engine.WithDeadLetter(rt.DLQ),
		engine.WithLogger(c.Log),
	)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := e.Run(ctx); err != nil {
		c.UI.Error(fmt.Sprintf("migration failed: %v", err))
		return 1
	}

	job := e.Job()
	c.UI.Output(fmt.Sprintf("job %s finished: %s", job.ID, job.Status))
	c.UI.Output(fmt.Sprintf("  total:     %d", job.TotalRecords))
	c.UI.Output(fmt.Sprintf("  processed: %d", job.ProcessedRecords))
	c.UI.Output(fmt.Sprintf("  failed:    %d", job.FailedRecords))
	if job.Watermark != "" {
		c.UI.Output(fmt.Sprintf("  watermark: %s", job.Watermark))
	}
	return 0
}
