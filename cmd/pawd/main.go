// Package main is the entry point for the pawd CLI.
package main

import (
	"os"

	"github.com/pawzhub/pawd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
