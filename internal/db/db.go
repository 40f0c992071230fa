package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import for side-effects only

	"mspro-labs/catalog-scraper/internal/models"
)

// Connect opens the SQLite database and ensures the schema exists.
// WAL mode and a busy timeout keep the CLI and the web UI from locking each other out.
func Connect(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

func createSchema(db *sql.DB) error {
	productTable := `
	CREATE TABLE IF NOT EXISTS product (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  category TEXT NOT NULL,
	  title TEXT NOT NULL,
	  description TEXT NOT NULL,
	  price REAL NOT NULL,
	  rating INTEGER NOT NULL,
	  num_of_reviews INTEGER NOT NULL,
	  first_scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  is_active INTEGER DEFAULT 1,
	  description_embedding BLOB,
	  UNIQUE (category, title, description)
	);
	CREATE INDEX IF NOT EXISTS idx_product_category ON product(category);
	CREATE INDEX IF NOT EXISTS idx_product_is_active ON product(is_active);
	`
	if _, err := db.Exec(productTable); err != nil {
		return err
	}

	// Query embeddings are cached so repeated searches skip the API.
	historyTable := `
	CREATE TABLE IF NOT EXISTS search_history (
		query_text TEXT PRIMARY KEY,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(historyTable); err != nil {
		return err
	}

	return nil
}

// Store adapts a database handle to the scraper's mirror interface.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ReplaceCategory is ReplaceCategory bound to the store's database.
func (s *Store) ReplaceCategory(ctx context.Context, category string, products []models.Product) (int64, error) {
	return ReplaceCategory(ctx, s.db, category, products)
}

// ReplaceCategory marks every product of category inactive and upserts the
// fresh set as active, all in one transaction. Products that disappeared from
// the page stay in the table with is_active = 0.
func ReplaceCategory(ctx context.Context, db *sql.DB, category string, products []models.Product) (int64, error) {
	upsertSQL := `
	INSERT INTO product (
	  category, title, description, price, rating, num_of_reviews, last_seen_at, is_active
	) VALUES (
	  ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1
	) ON CONFLICT(category, title, description) DO UPDATE SET
	  price = excluded.price,
	  rating = excluded.rating,
	  num_of_reviews = excluded.num_of_reviews,
	  last_seen_at = CURRENT_TIMESTAMP,
	  is_active = 1;
	`

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE product SET is_active = 0 WHERE category = ? AND is_active = 1`, category); err != nil {
		return 0, fmt.Errorf("failed to mark %s inactive: %w", category, err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var totalAffected int64
	for _, p := range products {
		res, err := stmt.ExecContext(ctx, category, p.Title, p.Description, p.Price, p.Rating, p.NumOfReviews)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert %q: %w", p.Title, err)
		}
		rows, _ := res.RowsAffected()
		totalAffected += rows
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return totalAffected, nil
}

// GetActiveProducts returns the products seen on the last run of each category.
func GetActiveProducts(db *sql.DB) ([]models.Product, error) {
	rows, err := db.Query(`
		SELECT category, title, description, price, rating, num_of_reviews
		FROM product
		WHERE is_active = 1
		ORDER BY category, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.Category, &p.Title, &p.Description, &p.Price, &p.Rating, &p.NumOfReviews); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// --- Embedding & Search Helpers ---

// EmbeddingTarget is an active product still missing its description vector.
type EmbeddingTarget struct {
	ID    int64
	Title string
	Text  string
}

// GetUnembeddedProducts lists active products without an embedding.
func GetUnembeddedProducts(db *sql.DB) ([]EmbeddingTarget, error) {
	rows, err := db.Query(`SELECT id, title, description FROM product WHERE is_active = 1 AND description_embedding IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []EmbeddingTarget
	for rows.Next() {
		var t EmbeddingTarget
		var desc string
		if err := rows.Scan(&t.ID, &t.Title, &desc); err != nil {
			return nil, err
		}
		// Title and description together make a richer embedding.
		t.Text = fmt.Sprintf("Product: %s\nDescription: %s", t.Title, desc)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// UpdateEmbedding stores the vector blob of one product.
func UpdateEmbedding(db *sql.DB, id int64, embedding []byte) error {
	_, err := db.Exec("UPDATE product SET description_embedding = ? WHERE id = ?", embedding, id)
	return err
}

// ProductVector is an active product together with its stored embedding.
type ProductVector struct {
	ID          int64
	Category    string
	Title       string
	Description string
	Price       float64
	Rating      int
	Vector      []byte
}

// GetProductVectors returns all active products that have embeddings.
func GetProductVectors(db *sql.DB) ([]ProductVector, error) {
	rows, err := db.Query(`SELECT id, category, title, description, price, rating, description_embedding FROM product WHERE is_active = 1 AND description_embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProductVector
	for rows.Next() {
		var pv ProductVector
		if err := rows.Scan(&pv.ID, &pv.Category, &pv.Title, &pv.Description, &pv.Price, &pv.Rating, &pv.Vector); err != nil {
			return nil, err
		}
		results = append(results, pv)
	}
	return results, rows.Err()
}

// GetCachedQuery returns a previously stored query vector, or sql.ErrNoRows.
func GetCachedQuery(db *sql.DB, text string) ([]byte, error) {
	var blob []byte
	err := db.QueryRow("SELECT embedding FROM search_history WHERE query_text = ?", text).Scan(&blob)
	return blob, err
}

// SaveCachedQuery records a query and its vector.
func SaveCachedQuery(db *sql.DB, text string, blob []byte) error {
	_, err := db.Exec("INSERT OR IGNORE INTO search_history (query_text, embedding) VALUES (?, ?)", text, blob)
	return err
}

// --- History Management for search ---

type HistoryEntry struct {
	QueryText string
	CreatedAt time.Time
}

// ListSearchHistory returns all cached queries, newest first.
func ListSearchHistory(db *sql.DB) ([]HistoryEntry, error) {
	rows, err := db.Query("SELECT query_text, created_at FROM search_history ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.QueryText, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearSearchHistory removes one query from the cache.
func ClearSearchHistory(db *sql.DB, queryText string) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history WHERE query_text = ?", queryText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAllSearchHistory wipes the cache.
func ClearAllSearchHistory(db *sql.DB) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
