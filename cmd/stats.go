package cmd

import (
	"github.com/spf13/cobra"

	"rental-scraper/services"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints rent statistics over every stored listing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		listings, err := store.FetchAll(ctx)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			logger.Warn("No listings stored in %s yet", cfg.TableName)
			return nil
		}

		insights := services.NewInsightService(logger)
		insights.Print(cmd.OutOrStdout(), insights.Generate(listings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
