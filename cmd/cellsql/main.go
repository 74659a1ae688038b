// Package main is the entry point of the cellsql CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/cellsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
