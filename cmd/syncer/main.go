// Package main provides the directory sync job: it mirrors the BLS
// time-series directory into object storage.
package main

import (
	"os"

	"blsdata/internal/entrypoint"
	"blsdata/internal/pipeline"
)

func main() {
	os.Exit(entrypoint.Job(pipeline.JobSync, os.Args[1:], os.Stdout, os.Stderr))
}
