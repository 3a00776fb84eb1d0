package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tika/internal/migrate"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Merge legacy knowledge and learned documents into knowledge_base",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := migrate.NewRunner(dataDir, slog.Default(), dryRun)
		if err != nil {
			return err
		}

		report, err := runner.Knowledge()
		if err != nil {
			return err
		}
		printReport(cmd, report)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(knowledgeCmd)
}
