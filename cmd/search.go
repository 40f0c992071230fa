package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/logger"
	"mspro-labs/catalog-scraper/internal/searcher"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantic search over scraped product descriptions",
	Long: `Uses AI embeddings to find products matching the meaning of your query.
Examples:
  catalog-scraper search "light laptop for travel"
  catalog-scraper search "cheap android phone with a big screen"

History commands:
  catalog-scraper search history
  catalog-scraper search clear "query string"
  catalog-scraper search clear all`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleSearch(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", searcher.DefaultLimit, "number of matches to show")
}

func handleSearch(ctx context.Context, w io.Writer, args []string) error {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch strings.ToLower(args[0]) {
	case "history":
		entries, err := db.ListSearchHistory(database)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle("Search history (cached queries)")
		t.AppendHeader(table.Row{"When", "Query"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.CreatedAt.Format("2006-01-02 15:04"), e.QueryText})
		}
		t.Render()
		return nil

	case "clear":
		if len(args) < 2 {
			return fmt.Errorf("usage: catalog-scraper search clear \"query text\" (or 'all')")
		}
		target := searcher.NormalizeQuery(strings.Join(args[1:], " "))
		var affected int64
		if target == "all" {
			affected, err = db.ClearAllSearchHistory(database)
		} else {
			affected, err = db.ClearSearchHistory(database, target)
		}
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Fprintf(w, "Removed %d entry(s) from cache.\n", affected)
		return nil
	}

	query := strings.Join(args, " ")

	// The client is only needed on a cache miss, so a missing key is not fatal here.
	var client ai.Embedder
	if appCfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("failed to init AI: %w", err)
		}
		defer aiClient.Close()
		client = aiClient
	} else {
		log := logger.For("search")
		log.Debug().Msg("GEMINI_API_KEY not set, only cached queries will work")
	}

	results, err := searcher.Perform(ctx, database, client, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	renderResults(w, query, results)
	return nil
}

func renderResults(w io.Writer, query string, results []searcher.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Top matches for %q", query)
	t.AppendHeader(table.Row{"#", "Match", "Category", "Title", "Description", "Price"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	for i, r := range results {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%.1f%%", r.Score*100),
			r.Item.Category,
			r.Item.Title,
			r.Item.Description,
			fmt.Sprintf("$%.2f", r.Item.Price),
		})
	}
	t.Render()
}
