package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/shapekit/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the shapekit HTTP server.

The server will:
  - Load configuration from shapekit.yaml (or --config)
  - Or load configuration from SHAPEKIT_* environment variables
  - Load shape definitions and optionally watch them for changes
  - Open the document store and apply migrations

Environment variables (for Docker deployments):
  SHAPEKIT_DEFINITIONS_DIR  - Definition directory (default: definitions)
  SHAPEKIT_DATABASE_DSN     - Database path (default: shapekit.db)
  SHAPEKIT_SERVER_PORT      - Server port (default: 8080)
  SHAPEKIT_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  shapekit serve
  shapekit serve --config /etc/shapekit/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
