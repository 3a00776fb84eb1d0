package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tika/internal/migrate"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Rewrite legacy enabled-map feature documents into disabled lists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := migrate.NewRunner(dataDir, slog.Default(), dryRun)
		if err != nil {
			return err
		}

		report, err := runner.Features()
		if err != nil {
			return err
		}
		printReport(cmd, report)

		return nil
	},
}

func printReport(cmd *cobra.Command, report migrate.Report) {
	prefix := "applied"
	if report.DryRun {
		prefix = "planned"
	}
	if len(report.Changes) == 0 {
		cmd.Printf("%s: nothing to migrate\n", prefix)
		return
	}
	for _, change := range report.Changes {
		if change.GuildID > 0 {
			cmd.Printf("%s guild %d: %s\n", prefix, change.GuildID, change.Description)
			continue
		}
		cmd.Printf("%s: %s\n", prefix, change.Description)
	}
	cmd.Printf("%s %d rewrite(s)\n", prefix, len(report.Changes))
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}
