package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"mspro-labs/catalog-scraper/internal/logger"
)

// stableWindow is how long the DOM must stay quiet before navigation counts
// as finished.
const stableWindow = 500 * time.Millisecond

// RodSession drives a locally launched Chromium through go-rod.
type RodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	log      zerolog.Logger
}

// NewRodSession launches a browser and connects to it.
func NewRodSession(opts Options) (*RodSession, error) {
	log := logger.For("browser")
	log.Info().Bool("headless", opts.Headless).Msg("launching browser")

	l := launcher.New().Headless(opts.Headless).NoSandbox(true)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodSession{browser: b, launcher: l, opts: opts, log: log}, nil
}

// NewPage opens a stealth tab.
func (s *RodSession) NewPage(ctx context.Context) (Page, error) {
	p, err := stealth.Page(s.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if s.opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	return &rodPage{page: p, opts: s.opts, log: s.log}, nil
}

// Close shuts the browser down and removes its profile directory.
func (s *RodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.log.Info().Msg("browser closed")
	return err
}

type rodPage struct {
	page *rod.Page
	opts Options
	log  zerolog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if p.opts.NavigationTimeout > 0 {
		page = page.Timeout(p.opts.NavigationTimeout)
	}

	p.log.Debug().Str("url", url).Msg("navigating")
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	if err := page.WaitStable(stableWindow); err != nil {
		return fmt.Errorf("wait for %s to settle: %w", url, err)
	}
	return nil
}

func (p *rodPage) Find(ctx context.Context, selector string) (Element, bool, error) {
	found, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("query %q: %w", selector, err)
	}
	if !found {
		return nil, false, nil
	}
	return &rodElement{el: el, clickTimeout: p.opts.ClickTimeout}, true, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el           *rod.Element
	clickTimeout time.Duration
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if e.clickTimeout > 0 {
		el = el.Timeout(e.clickTimeout)
	}

	return classifyClickErr(ctx, el.Click(proto.InputMouseButtonLeft, 1))
}

// classifyClickErr maps the click failures that mean the page will not take
// the click onto ErrNotInteractable. ctx is the caller's context, without the
// per-click timeout.
func classifyClickErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var notInteractable *rod.NotInteractableError
	if errors.As(err, &notInteractable) {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	// Click waits for the element to become interactable, so running out of
	// click time (but not the caller's time) means it never did.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return err
}
