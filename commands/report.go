package commands

import (
	"github.com/spf13/cobra"

	"venue-crawler/services"
	"venue-crawler/storage"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Prints the crawl report for everything stored in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := storage.OpenRepository(cmd.Context(), cfg.DBDriver, dsn(), retryConfig())
		if err != nil {
			return err
		}
		defer repo.Close()

		venues, err := repo.FetchVenues(cmd.Context())
		if err != nil {
			return err
		}
		insightSvc := services.NewInsightService(logger)
		insightSvc.Print(insightSvc.Generate(venues, nil))
		return nil
	},
}
