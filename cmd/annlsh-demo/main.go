// Package main provides the entry point for the annlsh-demo CLI.
package main

import (
	"os"

	"github.com/vectorhash/annlsh/cmd/annlsh-demo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
