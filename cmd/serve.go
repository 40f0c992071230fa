package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/logger"
	"mspro-labs/catalog-scraper/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Web UI server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, serveAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}

// newServeRegistry holds the metrics of the serve process itself. Scrape
// counters belong to scrape runs and are published by `scrape --metrics-addr`.
func newServeRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runServer(ctx context.Context, addr string) error {
	log := logger.For("serve")

	// 1. Setup
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return err
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// 2. AI stays alive as long as the server runs. Without a key only
	// cached queries can be answered.
	var client ai.Embedder
	if appCfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingModel)
		if err != nil {
			return err
		}
		defer aiClient.Close()
		client = aiClient
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, search is limited to cached queries")
	}

	ui, err := web.NewServer(database, client, newServeRegistry())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      ui.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("web UI started")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("web UI stopped")
	return nil
}
