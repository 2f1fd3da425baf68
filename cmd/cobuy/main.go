// Package main provides the cobuy CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/logger"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

var (
	configPath string
	debugLog   bool
	quietLog   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cobuy",
	Short: "Build product co-purchase graphs from eCommerce event logs",
	Long: `cobuy turns a purchase event log into a product co-purchase graph.

Products become nodes, grouped by brand. Two products are linked when the
same customer bought both. The largest connected component is exported
as a node-link JSON document for a force-directed viewer.

Typical flow:
  cobuy filter    # raw month log -> one category
  cobuy sample    # keep customers with many records
  cobuy build     # baskets -> graph -> <category>.json
  cobuy viz       # <category>.json -> HTML page

All commands output JSON by default. Logs go to stderr.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// S3 credentials may come from a local .env
		_ = godotenv.Load()
		logger.Init(logger.Options{Debug: debugLog, Quiet: quietLog})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./cobuy.yml or the global config)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietLog, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.Version = Version
}

// mustLoadConfig resolves and loads configuration, exits on error.
// Returns the config and the file it came from ("" for defaults).
func mustLoadConfig() (*config.Config, string) {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	cfg, path, err := config.Resolve(configPath, cwd)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if path == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("loaded config", "path", path)
	}
	return cfg, path
}

// mustValidateConfig exits with ExitConfigError if cfg is unusable.
func mustValidateConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
}
