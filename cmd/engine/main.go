// Package main is the entry point for the engine CLI.
//
// engine is a command-line tool for deploying helm chart plans to
// Kubernetes clusters. A plan file groups charts into dependency
// levels; the engine runs them level by level through the helm CLI,
// recovering stuck releases, retrying transient failures, snapshotting
// fragile resources and verifying installations along the way.
//
// Commands: deploy, destroy, releases, check, version.
//
// For detailed usage information, run:
//
//	engine --help
package main

import (
	"fmt"
	"os"

	"github.com/Qovery/engine-sub003/cmd/engine/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
