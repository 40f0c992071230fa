package cmd

import (
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/embedder"
)

var embedDelay = embedder.DefaultDelay

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate AI embeddings for new products",
	Long:  `Finds active products in the database that are missing semantic vectors and generates them using the Gemini API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appCfg, err := config.GetAppConfig()
		if err != nil {
			return err
		}
		database, err := db.Connect(appCfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingModel)
		if err != nil {
			return err
		}
		defer aiClient.Close()

		_, err = embedder.Run(ctx, database, aiClient, embedDelay)
		return err
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().DurationVar(&embedDelay, "delay", embedder.DefaultDelay, "pause between API calls")
}
