package browser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"mspro-labs/catalog-scraper/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// StaticSession fetches pages over plain HTTP with colly. Nothing runs
// scripts and clicks fail with ErrUnsupported, so it only suits pages whose
// load-more control is absent or hidden.
type StaticSession struct {
	collector *colly.Collector
	log       zerolog.Logger
}

// NewStaticSession builds the collector shared by all pages of the session.
func NewStaticSession(opts Options) *StaticSession {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
	)
	if opts.NavigationTimeout > 0 {
		c.SetRequestTimeout(opts.NavigationTimeout)
	}
	if opts.Transport != nil {
		c.WithTransport(opts.Transport)
	}

	return &StaticSession{collector: c, log: logger.For("browser")}
}

func (s *StaticSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{collector: s.collector.Clone(), log: s.log}, nil
}

func (s *StaticSession) Close() error {
	return nil
}

type staticPage struct {
	collector *colly.Collector
	log       zerolog.Logger

	body []byte
	doc  *goquery.Document
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body []byte
	c := p.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		p.log.Debug().Str("url", r.Request.URL.String()).Int("status", r.StatusCode).Msg("fetched")
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if body == nil {
		return fmt.Errorf("navigate to %s: empty response", url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	p.body = body
	p.doc = doc
	return nil
}

func (p *staticPage) Find(ctx context.Context, selector string) (Element, bool, error) {
	if p.doc == nil {
		return nil, false, fmt.Errorf("query %q: page not loaded", selector)
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return &staticElement{sel: sel}, true, nil
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("read page html: page not loaded")
	}
	return string(p.body), nil
}

func (p *staticPage) Close() error {
	p.body = nil
	p.doc = nil
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

// Visible approximates CSS visibility from inline markup only.
func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false, nil
	}
	style, _ := e.sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return !strings.Contains(style, "display:none"), nil
}

func (e *staticElement) Click(ctx context.Context) error {
	return fmt.Errorf("%w: static pages cannot be clicked", ErrUnsupported)
}
