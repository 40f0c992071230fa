// Package browser abstracts the page and element operations the scraper
// needs, with a headless Chrome backend (go-rod) and a plain HTTP backend
// (colly).
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mspro-labs/catalog-scraper/internal/config"
)

var (
	// ErrNotInteractable is returned by Element.Click when the page refuses
	// the click: covered by another element, zero-sized or pointer events
	// disabled.
	ErrNotInteractable = errors.New("element not interactable")

	// ErrUnsupported is returned by Element.Click on backends that cannot
	// click at all. It says nothing about the page.
	ErrUnsupported = errors.New("backend cannot click")
)

// Element is a single node located on a page.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
}

// Page is one open tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Find returns the first element matching selector. A missing element is
	// reported with found == false and a nil error.
	Find(ctx context.Context, selector string) (el Element, found bool, err error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Session owns the underlying browser (or HTTP client). Callers must Close it.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Options tune a session.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	ClickTimeout      time.Duration

	// Transport replaces the HTTP transport of the static backend.
	Transport http.RoundTripper
}

// OptionsFromConfig maps site configuration onto session options.
func OptionsFromConfig(cfg *config.SiteConfig) Options {
	return Options{
		Headless:          !cfg.Browser.Headful,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ClickTimeout:      cfg.Pagination.ClickTimeout,
	}
}

// Open starts a session for the named backend.
func Open(backend string, opts Options) (Session, error) {
	switch backend {
	case config.BackendRod:
		return NewRodSession(opts)
	case config.BackendStatic:
		return NewStaticSession(opts), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", backend)
	}
}
