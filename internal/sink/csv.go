// Package sink writes extracted products to delimited files.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"mspro-labs/catalog-scraper/internal/models"
)

// Header is the fixed column order of every output file.
var Header = []string{"title", "description", "price", "rating", "num_of_reviews"}

// WriteCSV replaces path with a header row plus one row per product. The data
// goes to a temporary file in the same directory which is renamed over path
// only after everything was written, so a failed write leaves any previous
// file untouched.
func WriteCSV(path string, products []models.Product) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err = Encode(f, products); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync csv file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod csv file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}

// Encode writes the header and product rows to w.
func Encode(w io.Writer, products []models.Product) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		if err := writer.Write(Row(p)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Row renders a product in Header order.
func Row(p models.Product) []string {
	return []string{
		p.Title,
		p.Description,
		strconv.FormatFloat(p.Price, 'f', 2, 64),
		strconv.Itoa(p.Rating),
		strconv.Itoa(p.NumOfReviews),
	}
}

// ReadCSV loads a file written by WriteCSV.
func ReadCSV(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv file %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file %q is empty", path)
	}
	if !sameHeader(records[0]) {
		return nil, fmt.Errorf("csv file %q: unexpected header %v", path, records[0])
	}

	products := make([]models.Product, 0, len(records)-1)
	for i, rec := range records[1:] {
		p, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("csv file %q line %d: %w", path, i+2, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func sameHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i := range Header {
		if row[i] != Header[i] {
			return false
		}
	}
	return true
}

func parseRow(rec []string) (models.Product, error) {
	price, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return models.Product{}, fmt.Errorf("price: %w", err)
	}
	rating, err := strconv.Atoi(rec[3])
	if err != nil {
		return models.Product{}, fmt.Errorf("rating: %w", err)
	}
	reviews, err := strconv.Atoi(rec[4])
	if err != nil {
		return models.Product{}, fmt.Errorf("num_of_reviews: %w", err)
	}
	return models.Product{
		Title:        rec[0],
		Description:  rec[1],
		Price:        price,
		Rating:       rating,
		NumOfReviews: reviews,
	}, nil
}
