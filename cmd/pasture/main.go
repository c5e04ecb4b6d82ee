// Package main is the pasture command.
package main

import (
	"os"

	"github.com/leapstack-labs/pasture/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
