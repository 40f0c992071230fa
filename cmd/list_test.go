package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/models"
	"mspro-labs/catalog-scraper/internal/searcher"
	"mspro-labs/catalog-scraper/internal/sink"
)

var phones = []models.Product{
	{Title: "Nokia 123", Description: "7 day battery", Price: 24.99, Rating: 3, NumOfReviews: 11},
	{Title: "Iphone", Description: "Black", Price: 899.99, Rating: 1, NumOfReviews: 4},
}

func TestRenderProducts(t *testing.T) {
	var buf bytes.Buffer
	renderProducts(&buf, "phones.csv", phones)

	out := buf.String()
	assert.Contains(t, out, "phones.csv")
	assert.Contains(t, out, "Nokia 123")
	assert.Contains(t, out, "$899.99")
	// Footers are upper-cased by the table style.
	assert.Contains(t, strings.ToUpper(out), "2 PRODUCTS")
	assert.Contains(t, strings.ToUpper(out), "AVG $462.49")
}

func TestRunListReadsGivenFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phones.csv")
	require.NoError(t, sink.WriteCSV(path, phones))

	var buf bytes.Buffer
	require.NoError(t, runList(&buf, []string{path}))
	assert.Contains(t, buf.String(), "Iphone")
}

func TestExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sink.WriteCSV(filepath.Join(dir, "touch.csv"), phones))

	tasks := []config.Task{
		{Name: "phones", Output: "phones.csv"},
		{Name: "touch", Output: "touch.csv"},
	}
	assert.Equal(t, []string{filepath.Join(dir, "touch.csv")}, existingOutputs(dir, tasks))
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, "cheap phone", []searcher.Result{
		{Item: db.ProductVector{Category: "phones", Title: "Nokia 123", Price: 24.99}, Score: 0.873},
	})
	out := buf.String()
	assert.Contains(t, out, "87.3%")
	assert.Contains(t, out, "Nokia 123")
}
