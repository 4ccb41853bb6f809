package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonLog    bool
	configPath string

	// Version information, injected from cmd/runengine-server/main.go.
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "runengine",
	Short: "Sandboxed code-execution engine",
	Long: `run-api is the execution backend of a "run code remotely" product.

It accepts a source program and a language tag, runs it inside an isolated,
resource-capped container, and returns stdout, stderr, exit code, and
wall-clock execution time. It is expected to be fronted by an API gateway
that handles authentication, rate limiting, and user-facing concerns.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

		if !jsonLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}

		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: runengine.yaml)")
}
