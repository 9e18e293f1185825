// Package main provides the unified worker command that runs sync, fetch
// and report in order, stopping at the first failure.
package main

import (
	"os"

	"blsdata/internal/entrypoint"
)

func main() {
	os.Exit(entrypoint.Worker(os.Args[1:], os.Stdout, os.Stderr))
}
