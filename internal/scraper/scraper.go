package scraper

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"mspro-labs/catalog-scraper/internal/browser"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/logger"
	"mspro-labs/catalog-scraper/internal/models"
	"mspro-labs/catalog-scraper/internal/sink"
)

// Store mirrors a category's products somewhere besides the CSV file.
type Store interface {
	ReplaceCategory(ctx context.Context, category string, products []models.Product) (int64, error)
}

// Scraper runs page tasks one after another against a caller-owned session.
type Scraper struct {
	session   browser.Session
	cfg       *config.SiteConfig
	outputDir string
	store     Store
	metrics   *Metrics
	log       zerolog.Logger
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithOutputDir sets the directory CSV files are written to.
func WithOutputDir(dir string) Option {
	return func(s *Scraper) { s.outputDir = dir }
}

// WithStore mirrors every finished task into store.
func WithStore(store Store) Option {
	return func(s *Scraper) { s.store = store }
}

// WithMetrics records task outcomes.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scraper) { s.log = log }
}

// New builds a Scraper. The session stays owned by the caller, who must
// close it.
func New(session browser.Session, cfg *config.SiteConfig, opts ...Option) *Scraper {
	s := &Scraper{
		session:   session,
		cfg:       cfg,
		outputDir: ".",
		log:       logger.For("scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TaskResult summarises one finished task.
type TaskResult struct {
	Task     config.Task
	Products []models.Product
	Clicks   int
	Path     string
	Duration time.Duration
}

// Run executes tasks sequentially and stops at the first failure. Results of
// the tasks that completed before it are returned alongside the error.
func (s *Scraper) Run(ctx context.Context, tasks []config.Task) ([]TaskResult, error) {
	results := make([]TaskResult, 0, len(tasks))
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := s.RunTask(ctx, task)
		if err != nil {
			s.metrics.taskFailed(err)
			return results, err
		}
		s.metrics.taskSucceeded(task.Name, len(res.Products), res.Clicks, res.Duration)
		results = append(results, res)
	}
	return results, nil
}

// RunTask navigates to the task's page, dismisses the cookie banner, loads
// every card, extracts them and writes the CSV file.
func (s *Scraper) RunTask(ctx context.Context, task config.Task) (TaskResult, error) {
	start := time.Now()
	log := s.log.With().Str("task", task.Name).Logger()
	res := TaskResult{Task: task}

	page, err := s.session.NewPage(ctx)
	if err != nil {
		return res, &TaskError{Task: task.Name, Stage: StageOpen, Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close page")
		}
	}()

	log.Info().Str("url", task.URL).Msg("navigating")
	if err := page.Navigate(ctx, task.URL); err != nil {
		return res, &TaskError{Task: task.Name, Stage: StageNavigate, Err: err}
	}

	DismissConsent(ctx, page, s.cfg.Selectors.CookieButton, log)

	res.Clicks, err = LoadAll(ctx, page, PaginationOptions{
		Selector:       s.cfg.Selectors.LoadMore,
		SettleInterval: s.cfg.Pagination.SettleInterval,
		MaxClicks:      s.cfg.Pagination.MaxClicks,
	}, log)
	if err != nil {
		return res, &TaskError{Task: task.Name, Stage: StagePaginate, Err: err}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return res, &TaskError{Task: task.Name, Stage: StageExtract, Err: err}
	}
	products, err := ExtractAll(html, s.cfg.Selectors)
	if err != nil {
		return res, &TaskError{Task: task.Name, Stage: StageExtract, Err: err}
	}
	for i := range products {
		products[i].Category = task.Name
	}
	res.Products = products

	res.Path = filepath.Join(s.outputDir, task.Output)
	if err := sink.WriteCSV(res.Path, products); err != nil {
		return res, &TaskError{Task: task.Name, Stage: StageSink, Err: err}
	}

	if s.store != nil {
		if _, err := s.store.ReplaceCategory(ctx, task.Name, products); err != nil {
			return res, &TaskError{Task: task.Name, Stage: StageStore, Err: err}
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("products", len(products)).
		Int("clicks", res.Clicks).
		Str("file", res.Path).
		Dur("took", res.Duration).
		Msg("task finished")
	return res, nil
}
