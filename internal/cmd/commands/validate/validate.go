// Package validate implements the `tablecast validate` command.
package validate

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/tablecast/tablecast/internal/cmd/base"
	"github.com/tablecast/tablecast/pkg/mapping"
	validator "github.com/tablecast/tablecast/pkg/validate"
)

type Command struct {
	*base.Command

	flagConfig     string
	flagMapping    string
	flagSampleSize int
}

func (c *Command) Synopsis() string {
	return "Validate a completed migration against its source"
}

func (c *Command) Help() string {
	return `Usage: tablecast validate -config=config.hcl -mapping=orders.yaml

  Compares the target index against the source: row counts, sampled
  document lookups, schema compatibility, and target health. Prints a
  JSON report and exits nonzero when validation fails.`
}

func (c *Command) flags() *flag.FlagSet {
	f := flag.NewFlagSet("validate", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "config.hcl", "Path to the HCL configuration file")
	f.StringVar(&c.flagMapping, "mapping", "", "Path to the YAML mapping configuration")
	f.IntVar(&c.flagSampleSize, "sample-size", validator.DefaultSampleSize,
		"Number of source rows to sample for the lookup check")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.flags()
	if err := f.Parse(args); err != nil {
		return 1
	}
	if c.flagMapping == "" {
		c.UI.Error("validate requires -mapping")
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

	v := validator.New(mappingCfg, rt.Reader, rt.Writer, c.Log,
		validator.WithSampleSize(c.flagSampleSize))
	report := v.Validate(context.Background())

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		c.UI.Error(fmt.Sprintf("failed to encode report: %v", err))
		return 1
	}
	c.UI.Output(string(out))

	if !report.Passed {
		return 1
	}
	return 0
}
