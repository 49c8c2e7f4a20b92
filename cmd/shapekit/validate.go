package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/shapekit/adapters/sqlite"
	"github.com/artpar/shapekit/bootstrap"
	"github.com/artpar/shapekit/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and shape definitions",
	Long: `Validate the shapekit configuration and definition files.

Checks:
  - Config file parses and passes validation (or env-only config)
  - Every definition file parses and all references resolve
  - Database is writable (optional)

Examples:
  shapekit validate
  shapekit validate --config /etc/shapekit/config.yaml --check-database`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfgFile); err == nil {
		fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)
	} else {
		fmt.Fprintf(out, "Validating environment configuration...\n\n")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Database: %s (%s, compress=%s, digest=%s)\n", checkMark,
		cfg.Database.DSN, cfg.Database.Driver, cfg.Database.Compress, cfg.Database.Digest)

	reg, err := bootstrap.LoadRegistry(cfg, cliLogger(cfg))
	if err != nil {
		fmt.Fprintf(out, "  %s Definitions in %s\n", crossMark, cfg.Definitions.Dir)
		return fmt.Errorf("definitions: %w", err)
	}
	fmt.Fprintf(out, "  %s Definitions in %s: %d shapes\n", checkMark, cfg.Definitions.Dir, reg.Len())

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg); err != nil {
			fmt.Fprintf(out, "  %s Database writable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database writable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabaseWritable(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.Migrate(ctx)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
