// Package main is the entry point for the run-api server.
//
// run-api is the sandboxed code-execution backend: it accepts a source
// program and a language tag, runs it inside a resource-capped container,
// and returns stdout, stderr, exit code, and wall-clock execution time.
//
// Usage:
//
//	runengine-server serve [flags]
//
// Flags:
//
//	-c, --config string   Path to config file (default: runengine.yaml)
//	-p, --port string     HTTP server port (default: 8080)
//	-v, --verbose         Enable debug logging
package main

import (
	"github.com/akshayaggarwal99/runengine/internal/cli"
)

// Version information (set via ldflags at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	cli.Execute()
}
