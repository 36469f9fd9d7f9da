// Package main is the entrypoint for the sqlgazer CLI.
package main

import (
	"os"

	"github.com/gazer-labs/sqlgazer/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute())
}
