/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the wallet ledger: runs the HTTP server and the
  small operational commands around it.

COMMANDS:
  serve     Run the HTTP API with graceful shutdown
  migrate   Apply the database schema and exit
  seed      Create the default wallets/categories for a user
  token     Mint a bearer token for a user (development)

CONFIGURATION:
  --config   YAML file (default: ./config.yaml when present)
  LEDGER_*   Environment overrides, e.g. LEDGER_DATABASE_DRIVER=postgres
  .env       Loaded into the environment first, when present

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the balance auditor
  4. Close database connection

EXAMPLES:
  # Run with a file database
  LEDGER_AUTH_JWT_SECRET=dev ./server serve

  # Run against Postgres
  LEDGER_DATABASE_DRIVER=postgres \
  LEDGER_DATABASE_DSN="postgres://ledger@localhost/ledger?sslmode=disable" \
  ./server serve

  # Get a token for curl
  ./server token --user 3f0c9c5e-0000-4000-8000-000000000001

SEE ALSO:
  - commands.go: Subcommand implementations
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
*/
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Expense and wallet ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newSeedCommand(&configPath),
		newTokenCommand(&configPath),
	)
	return rootCmd
}
