package models

// Product holds the scraped data for a single product card.
type Product struct {
	Title        string
	Description  string
	Price        float64
	Rating       int
	NumOfReviews int

	// Category is the task name the card was scraped under. It is not part of
	// the CSV output.
	Category string
}
