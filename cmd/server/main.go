// Package main provides the HTTP trigger server.
package main

import (
	"os"

	"blsdata/internal/entrypoint"
)

func main() {
	os.Exit(entrypoint.Serve(os.Args[1:], os.Stderr))
}
