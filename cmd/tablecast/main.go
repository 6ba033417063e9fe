package main

import (
	"os"

	"github.com/tablecast/tablecast/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
