package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/models"
)

const maxRating = 5

var (
	// Either grouped thousands ("1,139.54") or a bare number ("1139.54").
	pricePattern = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)
)

// ExtractAll parses a rendered page and extracts every product card in
// document order. The first card that fails aborts the whole page.
func ExtractAll(html string, sel config.Selectors) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	cards := doc.Find(sel.Card)
	products := make([]models.Product, 0, cards.Length())
	var cardErr error
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		p, err := ExtractProduct(card, sel)
		if err != nil {
			cardErr = fmt.Errorf("card %d: %w", i+1, err)
			return false
		}
		products = append(products, p)
		return true
	})
	if cardErr != nil {
		return nil, cardErr
	}
	return products, nil
}

// ExtractProduct maps one product card to a Product. Missing elements yield
// an *ExtractionError and unparseable values a *ParseError; nothing is
// defaulted.
func ExtractProduct(card *goquery.Selection, sel config.Selectors) (models.Product, error) {
	var p models.Product

	title, err := find(card, "title", sel.Title)
	if err != nil {
		return p, err
	}
	p.Title = strings.TrimSpace(title.AttrOr("title", ""))
	if p.Title == "" {
		return p, &ExtractionError{Field: "title", Selector: sel.Title + "[title]"}
	}

	desc, err := find(card, "description", sel.Description)
	if err != nil {
		return p, err
	}
	p.Description = NormalizeDescription(desc.Text())

	price, err := find(card, "price", sel.Price)
	if err != nil {
		return p, err
	}
	if p.Price, err = ParsePrice(price.Text()); err != nil {
		return p, err
	}

	ratings, err := find(card, "rating", sel.Ratings)
	if err != nil {
		return p, err
	}
	if p.Rating, err = extractRating(ratings, sel); err != nil {
		return p, err
	}

	reviews, err := find(card, "num_of_reviews", sel.Reviews)
	if err != nil {
		return p, err
	}
	if p.NumOfReviews, err = ParseReviewCount(reviews.Text()); err != nil {
		return p, err
	}

	return p, nil
}

func find(card *goquery.Selection, field, selector string) (*goquery.Selection, error) {
	s := card.Find(selector).First()
	if s.Length() == 0 {
		return nil, &ExtractionError{Field: field, Selector: selector}
	}
	return s, nil
}

// extractRating prefers an explicit data-rating attribute and falls back to
// counting star icons, covering both markup variants of the site.
func extractRating(ratings *goquery.Selection, sel config.Selectors) (int, error) {
	if sel.RatingAttr != "" {
		if attr := ratings.Find(sel.RatingAttr).First(); attr.Length() > 0 {
			return ParseRating(attr.AttrOr("data-rating", ""))
		}
	}
	if sel.StarIcon == "" {
		return 0, &ExtractionError{Field: "rating", Selector: sel.RatingAttr}
	}
	stars := ratings.Find(sel.StarIcon).Length()
	if stars > maxRating {
		return 0, &ParseError{Field: "rating", Value: strconv.Itoa(stars), Err: fmt.Errorf("more than %d stars", maxRating)}
	}
	return stars, nil
}

// NormalizeDescription folds compatibility characters (NFKC) and replaces
// non-breaking spaces with plain ones.
func NormalizeDescription(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

// ParsePrice converts currency text such as "$809.00" or "$1,139.54".
func ParsePrice(s string) (float64, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	if !pricePattern.MatchString(s) {
		return 0, &ParseError{Field: "price", Value: raw, Err: fmt.Errorf("not a price")}
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, &ParseError{Field: "price", Value: raw, Err: err}
	}
	return v, nil
}

// ParseReviewCount reads the leading integer of text such as "7 reviews".
func ParseReviewCount(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, &ParseError{Field: "num_of_reviews", Value: s, Err: fmt.Errorf("empty")}
	}
	if !digitsOnly.MatchString(fields[0]) {
		return 0, &ParseError{Field: "num_of_reviews", Value: s, Err: fmt.Errorf("not a count")}
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, &ParseError{Field: "num_of_reviews", Value: s, Err: err}
	}
	return n, nil
}

// ParseRating reads a data-rating attribute value.
func ParseRating(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ParseError{Field: "rating", Value: s, Err: err}
	}
	if n < 0 || n > maxRating {
		return 0, &ParseError{Field: "rating", Value: s, Err: fmt.Errorf("out of range 0..%d", maxRating)}
	}
	return n, nil
}
