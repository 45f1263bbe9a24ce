package main

import (
	"fmt"
	"os"

	"github.com/bnema/waycomp/cmd"
	"github.com/bnema/waycomp/internal/logger"
)

// Set with -ldflags "-X main.version=..." at release time.
var (
	version = "0.1.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Date = date

	err := cmd.Execute()
	if cerr := logger.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: closing log file: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
