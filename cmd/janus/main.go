// Package main is the entry point for the janus CLI.
package main

import (
	"os"

	"github.com/wtokarzewski/janus-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
