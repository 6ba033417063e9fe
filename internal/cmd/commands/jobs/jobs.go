// Package jobs implements the `tablecast jobs` command.
package jobs

import (
	"flag"
	"fmt"

	"github.com/tablecast/tablecast/internal/cmd/base"
	"github.com/tablecast/tablecast/pkg/models"
)

type Command struct {
	*base.Command

	flagConfig string
	flagName   string
}

func (c *Command) Synopsis() string {
	return "List migration jobs and their progress"
}

func (c *Command) Help() string {
	return `Usage: tablecast jobs -config=config.hcl [-name=orders]

  Lists migration jobs recorded in the job store, newest first,
  optionally filtered to one mapping configuration.`
}

func (c *Command) flags() *flag.FlagSet {
	f := flag.NewFlagSet("jobs", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "config.hcl", "Path to the HCL configuration file")
	f.StringVar(&c.flagName, "name", "", "Only list jobs for this mapping configuration")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.flags()
	if err := f.Parse(args); err != nil {
		return 1
	}

	rt, err := c.Setup(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	jobs, err := models.ListJobs(rt.DB, c.flagName)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if len(jobs) == 0 {
		c.UI.Output("no jobs recorded")
		return 0
	}

	for _, j := range jobs {
		line := fmt.Sprintf("%s  %-10s %-12s %s  processed=%d failed=%d total=%d",
			j.ID, j.ConfigName, j.Status, j.Strategy,
			j.ProcessedRecords, j.FailedRecords, j.TotalRecords)
		if j.ErrorMessage != "" {
			line += "  error=" + j.ErrorMessage
		}
		c.UI.Output(line)
	}
	return 0
}
