// Package main is the entry point for the x1wallet administration CLI.
package main

import (
	"os"

	"github.com/x1wallet/walletcore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
