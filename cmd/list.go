package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/models"
	"mspro-labs/catalog-scraper/internal/sink"
)

var (
	listOutputDir string
	listFromDB    bool
)

var listCmd = &cobra.Command{
	Use:   "list [file.csv...]",
	Short: "Print scraped products as a table",
	Long: `Prints the given CSV files, or every configured output file that exists, as a
table. With --db the active products of the SQLite mirror are printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listOutputDir, "output-dir", "", "directory holding the CSV files (overrides OUTPUT_DIR)")
	listCmd.Flags().BoolVar(&listFromDB, "db", false, "list active products from the database")
}

func runList(w io.Writer, files []string) error {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}

	if listFromDB {
		database, err := db.Connect(appCfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		products, err := db.GetActiveProducts(database)
		if err != nil {
			return err
		}
		renderProducts(w, "database", products)
		return nil
	}

	if len(files) == 0 {
		siteCfg, err := loadSiteConfig(appCfg.ConfigPath)
		if err != nil {
			return err
		}
		dir := appCfg.OutputDir
		if listOutputDir != "" {
			dir = listOutputDir
		}
		files = existingOutputs(dir, siteCfg.Tasks)
		if len(files) == 0 {
			fmt.Fprintf(w, "No CSV files in %s. Run the scrape command first.\n", dir)
			return nil
		}
	}

	for _, path := range files {
		products, err := sink.ReadCSV(path)
		if err != nil {
			return err
		}
		renderProducts(w, path, products)
	}
	return nil
}

// existingOutputs returns the output paths of tasks whose file exists.
func existingOutputs(dir string, tasks []config.Task) []string {
	var paths []string
	for _, t := range tasks {
		path := filepath.Join(dir, t.Output)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	return paths
}

func renderProducts(w io.Writer, caption string, products []models.Product) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s", caption)
	t.AppendHeader(table.Row{"#", "Title", "Description", "Price", "Rating", "Reviews"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 60},
	})

	var sum float64
	for i, p := range products {
		t.AppendRow(table.Row{i + 1, p.Title, p.Description, fmt.Sprintf("$%.2f", p.Price), p.Rating, p.NumOfReviews})
		sum += p.Price
	}

	footer := table.Row{"", fmt.Sprintf("%d products", len(products)), "", "", "", ""}
	if len(products) > 0 {
		footer[3] = fmt.Sprintf("avg $%.2f", sum/float64(len(products)))
	}
	t.AppendFooter(footer)
	t.Render()
}
