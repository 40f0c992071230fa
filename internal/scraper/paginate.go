package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mspro-labs/catalog-scraper/internal/browser"
)

// DismissConsent clicks the cookie banner's accept control when one is shown.
// A missing, hidden or unclickable banner is normal and only logged; the
// return value reports whether a click landed.
func DismissConsent(ctx context.Context, page browser.Page, selector string, log zerolog.Logger) bool {
	if selector == "" {
		return false
	}

	el, found, err := page.Find(ctx, selector)
	if err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("cookie banner lookup failed")
		return false
	}
	if !found {
		log.Debug().Str("selector", selector).Msg("no cookie banner")
		return false
	}

	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		log.Debug().Err(err).Str("selector", selector).Msg("cookie banner not visible")
		return false
	}

	if err := el.Click(ctx); err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("cookie banner click failed")
		return false
	}
	log.Debug().Msg("cookie banner dismissed")
	return true
}

// PaginationOptions controls LoadAll.
type PaginationOptions struct {
	Selector       string
	SettleInterval time.Duration
	MaxClicks      int
}

// LoadAll clicks the load-more control until it is gone, hidden or refuses
// the click, and returns the number of clicks performed. Reaching MaxClicks
// with the control still clickable is a *PaginationLimitError. A visible
// control on a backend that cannot click fails with browser.ErrUnsupported,
// since the page would otherwise be cut short.
func LoadAll(ctx context.Context, page browser.Page, opts PaginationOptions, log zerolog.Logger) (int, error) {
	if opts.MaxClicks <= 0 {
		return 0, fmt.Errorf("pagination: max clicks must be positive, got %d", opts.MaxClicks)
	}

	clicks := 0
	for {
		el, found, err := page.Find(ctx, opts.Selector)
		if err != nil {
			return clicks, fmt.Errorf("pagination: find load-more control: %w", err)
		}
		if !found {
			return clicks, nil
		}

		visible, err := el.Visible(ctx)
		if err != nil {
			return clicks, fmt.Errorf("pagination: load-more visibility: %w", err)
		}
		if !visible {
			return clicks, nil
		}

		if clicks >= opts.MaxClicks {
			return clicks, &PaginationLimitError{Selector: opts.Selector, Limit: opts.MaxClicks}
		}

		if err := el.Click(ctx); err != nil {
			if errors.Is(err, browser.ErrNotInteractable) {
				log.Debug().Err(err).Int("clicks", clicks).Msg("load-more no longer interactable")
				return clicks, nil
			}
			if errors.Is(err, browser.ErrUnsupported) {
				return clicks, fmt.Errorf("pagination: load-more control %q is visible: %w", opts.Selector, err)
			}
			return clicks, fmt.Errorf("pagination: click load-more: %w", err)
		}
		clicks++
		log.Debug().Int("clicks", clicks).Msg("load-more clicked")

		if err := sleep(ctx, opts.SettleInterval); err != nil {
			return clicks, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
