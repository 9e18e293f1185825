// Package main provides the population fetch job.
package main

import (
	"os"

	"blsdata/internal/entrypoint"
	"blsdata/internal/pipeline"
)

func main() {
	os.Exit(entrypoint.Job(pipeline.JobFetch, os.Args[1:], os.Stdout, os.Stderr))
}
