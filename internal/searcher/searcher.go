package searcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/logger"
)

// DefaultLimit is the number of matches returned when the caller passes 0.
const DefaultLimit = 5

// Result holds a single search match.
type Result struct {
	Item  db.ProductVector
	Score float32
}

// NormalizeQuery is the form queries are cached under.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Perform ranks embedded products by cosine similarity to queryText.
func Perform(ctx context.Context, database *sql.DB, client ai.Embedder, queryText string, limit int) ([]Result, error) {
	queryText = NormalizeQuery(queryText)
	if queryText == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryVector, err := getQueryVector(ctx, database, client, queryText)
	if err != nil {
		return nil, err
	}

	products, err := db.GetProductVectors(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	results := make([]Result, 0, len(products))
	for _, p := range products {
		floats, err := ai.BytesToFloats(p.Vector)
		if err != nil {
			continue
		}
		results = append(results, Result{Item: p, Score: ai.CosineSimilarity(queryVector, floats)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// getQueryVector is cache-aside: the history table first, the API on a miss.
func getQueryVector(ctx context.Context, database *sql.DB, client ai.Embedder, text string) ([]float32, error) {
	log := logger.For("searcher")

	blob, err := db.GetCachedQuery(database, text)
	if err == nil {
		log.Debug().Str("query", text).Msg("query cache hit")
		return ai.BytesToFloats(blob)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read query cache: %w", err)
	}

	if client == nil {
		return nil, fmt.Errorf("query %q is not cached and no AI client is configured", text)
	}
	log.Info().Str("query", text).Msg("query cache miss, calling Gemini")
	blob, floats, err := client.EmbedString(ctx, text)
	if err != nil {
		return nil, err
	}

	// A failed cache write does not fail the search.
	if err := db.SaveCachedQuery(database, text, blob); err != nil {
		log.Warn().Err(err).Msg("failed to save query to cache")
	}
	return floats, nil
}

// Filter drops results scoring below minScore.
func Filter(results []Result, minScore float32) []Result {
	var filtered []Result
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
