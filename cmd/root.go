package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "catalog-scraper",
	Short: "Scrape the webscraper.io e-commerce test site into CSV files",
	Long: `Loads every product of the webscraper.io "load more" e-commerce test site,
writes one CSV file per category and mirrors the products into SQLite for
browsing and semantic search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()
	logger.Init()

	if err := rootCmd.Execute(); err != nil {
		logger.Default.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
