package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/staffapply/staffapply/staffapply"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and run migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal(
				"Environment variable STAFFAPPLY_DATABASE_TYPE not set " +
					"(must be one of: sqlite, postgres)",
			)
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable STAFFAPPLY_DATABASE not set (must be a " +
					"valid database connection string or sqlite file path)",
			)
		}

		logHandler := tint.NewHandler(
			os.Stdout, &tint.Options{Level: cfg.DatabaseLogLevel},
		)
		_, err := staffapply.CreateDB(
			ctx,
			cfg.DatabaseType,
			cfg.Database,
			logHandler,
			cfg.DatabaseSlowThreshold,
		)
		if err != nil {
			log.Fatalf("Error creating database: %v", err)
		}

		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
