package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tika/internal/migrate"
)

var adminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "Migrate the legacy flat bot_admins.json into per-guild documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := migrate.NewRunner(dataDir, slog.Default(), dryRun)
		if err != nil {
			return err
		}

		report, err := runner.Admins()
		if err != nil {
			return err
		}
		printReport(cmd, report)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminsCmd)
}
