// Package cmd wires the tablecast CLI.
package cmd

import (
	"bufio"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/tablecast/tablecast/internal/cmd/base"
	"github.com/tablecast/tablecast/internal/cmd/commands/jobs"
	"github.com/tablecast/tablecast/internal/cmd/commands/migrate"
	"github.com/tablecast/tablecast/internal/cmd/commands/reprocess"
	"github.com/tablecast/tablecast/internal/cmd/commands/suggest"
	"github.com/tablecast/tablecast/internal/cmd/commands/validate"
	"github.com/tablecast/tablecast/internal/version"
)

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	cliName := args[0]

	log := hclog.New(&hclog.LoggerOptions{
		Name: "tablecast",
	})

	if len(args) == 2 &&
		(args[1] == "-version" ||
			args[1] == "-v") {
		args = []string{cliName, "version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	baseCmd := &base.Command{UI: ui, Log: log}

	c := &cli.CLI{
		Name:    cliName,
		Args:    args[1:],
		Version: version.Version,
		Commands: map[string]cli.CommandFactory{
			"migrate": func() (cli.Command, error) {
				return &migrate.Command{Command: baseCmd}, nil
			},
			"validate": func() (cli.Command, error) {
				return &validate.Command{Command: baseCmd}, nil
			},
			"reprocess": func() (cli.Command, error) {
				return &reprocess.Command{Command: baseCmd}, nil
			},
			"suggest": func() (cli.Command, error) {
				return &suggest.Command{Command: baseCmd}, nil
			},
			"jobs": func() (cli.Command, error) {
				return &jobs.Command{Command: baseCmd}, nil
			},
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	return exitCode
}
