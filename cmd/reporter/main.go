// Package main provides the report job, triggered by notifications of a
// new population dataset.
package main

import (
	"os"

	"blsdata/internal/entrypoint"
	"blsdata/internal/pipeline"
)

func main() {
	os.Exit(entrypoint.Job(pipeline.JobReport, os.Args[1:], os.Stdout, os.Stderr))
}
