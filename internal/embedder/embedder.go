package embedder

import (
	"context"
	"database/sql"
	"time"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/logger"
)

// DefaultDelay keeps requests under the free tier's rate limit (about 60 RPM).
const DefaultDelay = time.Second

// Run embeds every active product that has no vector yet and returns how many
// were stored. Per-item failures are logged and skipped.
func Run(ctx context.Context, database *sql.DB, client ai.Embedder, delay time.Duration) (int, error) {
	log := logger.For("embedder")

	targets, err := db.GetUnembeddedProducts(database)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		log.Info().Msg("all active products are already embedded")
		return 0, nil
	}
	log.Info().Int("pending", len(targets)).Msg("embedding products")

	count := 0
	for _, t := range targets {
		log.Debug().Int64("id", t.ID).Str("title", t.Title).Msg("embedding")

		blob, _, err := client.EmbedString(ctx, t.Text)
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			log.Warn().Err(err).Str("title", t.Title).Msg("embedding failed")
		} else if err := db.UpdateEmbedding(database, t.ID, blob); err != nil {
			log.Warn().Err(err).Str("title", t.Title).Msg("failed to save embedding")
		} else {
			count++
		}

		if err := wait(ctx, delay); err != nil {
			return count, err
		}
	}

	log.Info().Int("embedded", count).Msg("embedding finished")
	return count, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
