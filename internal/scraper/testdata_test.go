package scraper

import (
	"fmt"
	"strings"
)

// card describes one product card of a fixture page.
type card struct {
	title       string
	description string
	price       string
	stars       int
	dataRating  string // empty: star-icon markup without data-rating
	reviews     string
}

func (c card) html() string {
	var b strings.Builder
	b.WriteString(`<div class="col-md-4 col-xl-4 col-lg-4"><div class="card thumbnail"><div class="card-body"><div class="caption">`)
	fmt.Fprintf(&b, `<h4 class="price float-end card-title pull-right">%s</h4>`, c.price)
	fmt.Fprintf(&b, `<h4><a href="/product/1" class="title" title="%s">%s</a></h4>`, c.title, truncate(c.title))
	fmt.Fprintf(&b, `<p class="description card-text">%s</p>`, c.description)
	b.WriteString(`</div><div class="ratings">`)
	fmt.Fprintf(&b, `<p class="review-count float-end">%s</p>`, c.reviews)
	if c.dataRating != "" {
		fmt.Fprintf(&b, `<p data-rating="%s">`, c.dataRating)
	} else {
		b.WriteString(`<p>`)
	}
	for i := 0; i < c.stars; i++ {
		b.WriteString(`<span class="ws-icon ws-icon-star"></span>`)
	}
	b.WriteString(`</p></div></div></div></div>`)
	return b.String()
}

func truncate(s string) string {
	if len(s) > 12 {
		return s[:12] + "..."
	}
	return s
}

var fixtureCards = []card{
	{
		title:       "Asus VivoBook X441NA-GA190",
		description: "Asus VivoBook X441NA-GA190 Chocolate Black, 14\", Celeron N3450, 4GB, 128GB SSD",
		price:       "$295.99",
		stars:       3,
		reviews:     "14 reviews",
	},
	{
		title:       "Samsung Galaxy",
		description: "5 mpx. Android 5.0",
		price:       "$93.99",
		stars:       4,
		dataRating:  "4",
		reviews:     "3 reviews",
	},
	{
		title:       "ThinkPad X240",
		description: "12.5\", Core i5\u00a0Processor, 8GB RAM",
		price:       "$1,311.99",
		stars:       1,
		reviews:     "1 review",
	},
}

const (
	cookieBanner = `<div id="cookieBanner"><a class="acceptCookies" href="#">Accept &amp; Continue</a></div>`
	loadMore     = `<a class="btn btn-lg btn-block btn-primary ecomerce-items-scroll-more">More</a>`
	loadMoreDone = `<a class="btn btn-lg btn-block btn-primary ecomerce-items-scroll-more" style="display: none">More</a>`
)

// fixturePage renders a category page around cards.
func fixturePage(cards []card, extras ...string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><title>Laptops</title></head><body><div class="container test-site"><div class="row">`)
	for _, c := range cards {
		b.WriteString(c.html())
	}
	b.WriteString(`</div>`)
	for _, e := range extras {
		b.WriteString(e)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
