package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/shapekit/bootstrap"
	"github.com/artpar/shapekit/config"
	"github.com/artpar/shapekit/core/formatter"
	"github.com/artpar/shapekit/core/registry"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shapekit",
	Short: "Shape definitions with structural equality, hashing and a JSON codec",
	Long: `shapekit loads record shapes from YAML or JSONC definition files and
derives structural equality, hashing and a JSON codec for each of them.

Inspect:
  shapekit shapes              # List loaded shapes
  shapekit describe Order      # Show the fields of a shape
  shapekit validate            # Check configuration and definitions

Values:
  shapekit normalize Order order.json
  shapekit hash Order order.json
  shapekit equals Order a.json b.json

Server:
  shapekit serve               # Start the HTTP API`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "shapekit.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (json, yaml, table)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func cliLogger(cfg *config.Config) zerolog.Logger {
	if !verbose {
		return zerolog.Nop()
	}
	return bootstrap.NewLogger(config.LoggingConfig{Level: cfg.Logging.Level, Format: "console"}, os.Stderr)
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.LoadRegistry(cfg, cliLogger(cfg))
}

func getFormatter() (formatter.Formatter, error) {
	f, ok := formatter.Get(outputFormat)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", outputFormat, formatter.List())
	}
	return f, nil
}
