// Package suggest implements the `tablecast suggest` command.
package suggest

import (
	"context"
	"flag"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tablecast/tablecast/internal/cmd/base"
	"github.com/tablecast/tablecast/pkg/mapping"
)

type Command struct {
	*base.Command

	flagConfig string
	flagQuery  string
	flagTable  string
	flagOut    string
}

func (c *Command) Synopsis() string {
	return "Suggest a mapping configuration from a query's column metadata"
}

func (c *Command) Help() string {
	return `Usage: tablecast suggest -config=config.hcl -query="SELECT * FROM orders" [-table=orders] [-out=orders.yaml]

  Inspects the query's result shape and proposes target field names,
  field types, and transformation rules. With -out, writes a starter
  YAML mapping configuration; otherwise prints the analysis.

  Suggestions are heuristic. Review them before migrating.`
}

func (c *Command) flags() *flag.FlagSet {
	f := flag.NewFlagSet("suggest", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "config.hcl", "Path to the HCL configuration file")
	f.StringVar(&c.flagQuery, "query", "", "Source query to analyze")
	f.StringVar(&c.flagTable, "table", "", "Logical table name for the configuration")
	f.StringVar(&c.flagOut, "out", "", "Write a starter mapping configuration to this path")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.flags()
	if err := f.Parse(args); err != nil {
		return 1
	}
	if c.flagQuery == "" {
		c.UI.Error("suggest requires -query")
		return 1
	}

	rt, err := c.Setup(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	colTypes, err := rt.Reader.ColumnTypes(context.Background(), c.flagQuery)
	if err != nil {
		c.UI.Error(fmt.Sprintf("failed to inspect query: %v", err))
		return 1
	}

	columns := make([]mapping.Column, 0, len(colTypes))
	for _, ct := range colTypes {
		columns = append(columns, mapping.Column{Name: ct.Name, Type: ct.Type, Table: c.flagTable})
	}
	analysis := mapping.SuggestRelationships(columns, nil)

	if c.flagOut == "" {
		out, err := yaml.Marshal(analysis)
		if err != nil {
			c.UI.Error(fmt.Sprintf("failed to encode analysis: %v", err))
			return 1
		}
		c.UI.Output(string(out))
		return 0
	}

	cfg := starterConfig(c.flagTable, c.flagQuery, analysis)
	if err := cfg.Save(c.flagOut); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("wrote %s with %d field mappings", c.flagOut, len(cfg.Fields)))
	return 0
}

// starterConfig turns the analysis into a mapping configuration a user
// can edit and run.
func starterConfig(table, query string, analysis *mapping.RelationshipAnalysis) *mapping.Config {
	name := table
	if name == "" {
		name = "suggested"
	}
	cfg := &mapping.Config{
		Name:        name,
		SourceQuery: query,
		SourceTable: table,
		TargetIndex: name,
	}
	for _, s := range analysis.FieldSuggestions {
		cfg.Fields = append(cfg.Fields, mapping.FieldMapping{
			SourceField: s.SourceField,
			TargetField: s.TargetField,
			SourceType:  s.SourceType,
			TargetType:  s.TargetType,
			Rules:       s.Rules,
		})
	}
	return cfg
}
