package cmd

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/browser"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/embedder"
	"mspro-labs/catalog-scraper/internal/logger"
	"mspro-labs/catalog-scraper/internal/scraper"
)

type scrapeOptions struct {
	tasks       []string
	backend     string
	outputDir   string
	metricsAddr string
	noDB        bool
}

var scrapeOpts scrapeOptions

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every configured category into CSV files",
	Long: `Opens each configured category page, dismisses the cookie banner, clicks
"load more" until every product is shown and writes the products to one CSV
file per category. Products are mirrored into SQLite and, when GEMINI_API_KEY
is set, new ones are embedded for semantic search.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScrape(ctx, scrapeOpts)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringArrayVar(&scrapeOpts.tasks, "task", nil, "only run the named task (repeatable)")
	f.StringVar(&scrapeOpts.backend, "backend", "", "browser backend: rod or static (overrides config)")
	f.StringVar(&scrapeOpts.outputDir, "output-dir", "", "directory for CSV files (overrides OUTPUT_DIR)")
	f.StringVar(&scrapeOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while scraping")
	f.BoolVar(&scrapeOpts.noDB, "no-db", false, "skip the SQLite mirror and embeddings")
}

func runScrape(ctx context.Context, opts scrapeOptions) error {
	log := logger.For("scrape")

	// 1. Load Config
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	siteCfg, err := loadSiteConfig(appCfg.ConfigPath)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		siteCfg.Browser.Backend = opts.backend
		if err := siteCfg.Validate(); err != nil {
			return err
		}
	}
	outputDir := appCfg.OutputDir
	if opts.outputDir != "" {
		outputDir = opts.outputDir
	}
	tasks, err := siteCfg.FilterTasks(opts.tasks)
	if err != nil {
		return err
	}

	// 2. Metrics
	metrics := scraper.NewMetrics()
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", opts.metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	scraperOpts := []scraper.Option{
		scraper.WithOutputDir(outputDir),
		scraper.WithMetrics(metrics),
	}

	// 3. Connect to DB
	var store *db.Store
	if !opts.noDB {
		database, err := db.Connect(appCfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = db.NewStore(database)
		scraperOpts = append(scraperOpts, scraper.WithStore(store))
		defer func() { autoEmbed(ctx, appCfg, store) }()
	}

	// 4. Run Scraper
	session, err := browser.Open(siteCfg.Browser.Backend, browser.OptionsFromConfig(siteCfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browser session")
		}
	}()

	log.Info().
		Int("tasks", len(tasks)).
		Str("backend", siteCfg.Browser.Backend).
		Str("output_dir", outputDir).
		Msg("starting scrape")

	results, err := scraper.New(session, siteCfg, scraperOpts...).Run(ctx, tasks)
	total := 0
	for _, r := range results {
		total += len(r.Products)
	}
	if err != nil {
		log.Error().Int("completed_tasks", len(results)).Int("products", total).Msg("scrape aborted")
		return err
	}
	log.Info().Int("completed_tasks", len(results)).Int("products", total).Msg("scrape finished")
	return nil
}

// autoEmbed embeds new products after a scrape. It never fails the scrape.
func autoEmbed(ctx context.Context, appCfg config.AppConfig, store *db.Store) {
	log := logger.For("scrape")
	if ctx.Err() != nil {
		return
	}
	if appCfg.GeminiAPIKey == "" {
		log.Debug().Msg("GEMINI_API_KEY not set, skipping embeddings")
		return
	}

	aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingModel)
	if err != nil {
		log.Warn().Err(err).Msg("could not initialize AI for auto-embedding")
		return
	}
	defer aiClient.Close()

	if _, err := embedder.Run(ctx, store.DB(), aiClient, embedder.DefaultDelay); err != nil {
		log.Warn().Err(err).Msg("auto-embedding failed")
	}
}

// loadSiteConfig falls back to the built-in targets when the file is absent.
func loadSiteConfig(path string) (*config.SiteConfig, error) {
	cfg, err := config.LoadSiteConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		log := logger.For("config")
		log.Warn().Str("path", path).Msg("config file not found, using built-in defaults")
		return config.DefaultSiteConfig(), nil
	}
	return cfg, err
}
