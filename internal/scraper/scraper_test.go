package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/catalog-scraper/internal/browser"
	"mspro-labs/catalog-scraper/internal/config"
	"mspro-labs/catalog-scraper/internal/models"
)

const fixtureCSV = "title,description,price,rating,num_of_reviews\n" +
	"Asus VivoBook X441NA-GA190,\"Asus VivoBook X441NA-GA190 Chocolate Black, 14\"\", Celeron N3450, 4GB, 128GB SSD\",295.99,3,14\n" +
	"Samsung Galaxy,5 mpx. Android 5.0,93.99,4,3\n" +
	"ThinkPad X240,\"12.5\"\", Core i5 Processor, 8GB RAM\",1311.99,1,1\n"

func testSiteConfig(tasks ...config.Task) *config.SiteConfig {
	cfg := config.DefaultSiteConfig()
	cfg.Pagination.SettleInterval = 0
	cfg.Tasks = tasks
	return cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// serveFixtures starts a server with the fixture page at /plain, the same
// cards behind a cookie banner and an exhausted load-more control at /banner,
// and with a still visible load-more control at /more.
func serveFixtures(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixturePage(fixtureCards)))
	})
	mux.HandleFunc("/banner", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixturePage(fixtureCards, loadMoreDone, cookieBanner)))
	})
	mux.HandleFunc("/more", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixturePage(fixtureCards[:1], loadMore)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWritesFixtureCSVOverHTTP(t *testing.T) {
	srv := serveFixtures(t)
	dir := t.TempDir()

	session := browser.NewStaticSession(browser.Options{})
	defer session.Close()

	cfg := testSiteConfig(config.Task{Name: "laptops", URL: srv.URL + "/plain", Output: "laptops.csv"})
	s := New(session, cfg, WithOutputDir(dir))

	results, err := s.Run(context.Background(), cfg.Tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Products, 3)
	assert.Equal(t, 0, results[0].Clicks)
	assert.Equal(t, filepath.Join(dir, "laptops.csv"), results[0].Path)

	assert.Equal(t, fixtureCSV, readFile(t, results[0].Path))
}

func TestRunOutputDoesNotDependOnCookieBanner(t *testing.T) {
	srv := serveFixtures(t)
	dir := t.TempDir()

	session := browser.NewStaticSession(browser.Options{})
	defer session.Close()

	cfg := testSiteConfig(
		config.Task{Name: "plain", URL: srv.URL + "/plain", Output: "plain.csv"},
		config.Task{Name: "banner", URL: srv.URL + "/banner", Output: "banner.csv"},
	)
	_, err := New(session, cfg, WithOutputDir(dir)).Run(context.Background(), cfg.Tasks)
	require.NoError(t, err)

	assert.Equal(t, readFile(t, filepath.Join(dir, "plain.csv")), readFile(t, filepath.Join(dir, "banner.csv")))
}

func TestRunFailsWhenBackendCannotLoadMore(t *testing.T) {
	srv := serveFixtures(t)
	dir := t.TempDir()

	session := browser.NewStaticSession(browser.Options{})
	defer session.Close()

	cfg := testSiteConfig(config.Task{Name: "laptops", URL: srv.URL + "/more", Output: "laptops.csv"})
	_, err := New(session, cfg, WithOutputDir(dir)).Run(context.Background(), cfg.Tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrUnsupported)

	var task *TaskError
	require.True(t, errors.As(err, &task))
	assert.Equal(t, StagePaginate, task.Stage)

	_, statErr := os.Stat(filepath.Join(dir, "laptops.csv"))
	assert.True(t, os.IsNotExist(statErr), "no partial csv should be written")
}

// fakeSession hands out fakePages in order.
type fakeSession struct {
	mu     sync.Mutex
	pages  []*fakePage
	opened int
	err    error
}

func (s *fakeSession) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := s.pages[s.opened]
	s.opened++
	return p, nil
}

func (s *fakeSession) Close() error { return nil }

type recordingStore struct {
	calls map[string][]models.Product
	err   error
}

func (r *recordingStore) ReplaceCategory(ctx context.Context, category string, products []models.Product) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.calls == nil {
		r.calls = map[string][]models.Product{}
	}
	r.calls[category] = products
	return int64(len(products)), nil
}

func TestRunTaskPaginatesBeforeExtracting(t *testing.T) {
	page := &fakePage{html: fixturePage(fixtureCards), batches: 3, banner: true}
	store := &recordingStore{}
	metrics := NewMetrics()
	dir := t.TempDir()

	cfg := testSiteConfig(config.Task{Name: "phones", URL: "https://shop.test/phones", Output: "phones.csv"})
	s := New(&fakeSession{pages: []*fakePage{page}}, cfg,
		WithOutputDir(dir), WithStore(store), WithMetrics(metrics))

	results, err := s.Run(context.Background(), cfg.Tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "https://shop.test/phones", page.url)
	assert.True(t, page.accepted)
	assert.True(t, page.closed)
	assert.Equal(t, 3, results[0].Clicks)

	require.Len(t, store.calls["phones"], 3)
	for _, p := range store.calls["phones"] {
		assert.Equal(t, "phones", p.Category)
	}

	assert.Equal(t, fixtureCSV, readFile(t, filepath.Join(dir, "phones.csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ProductsTotal.WithLabelValues("phones")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.LoadMoreClicks.WithLabelValues("phones")))
}

func TestRunAbortsOnFirstFailingTask(t *testing.T) {
	bad := fixtureCards[0]
	bad.reviews = "lots"

	good := &fakePage{html: fixturePage(fixtureCards)}
	broken := &fakePage{html: fixturePage([]card{bad})}
	never := &fakePage{html: fixturePage(fixtureCards)}
	session := &fakeSession{pages: []*fakePage{good, broken, never}}
	metrics := NewMetrics()
	dir := t.TempDir()

	cfg := testSiteConfig(
		config.Task{Name: "computers", URL: "https://shop.test/computers", Output: "computers.csv"},
		config.Task{Name: "laptops", URL: "https://shop.test/laptops", Output: "laptops.csv"},
		config.Task{Name: "tablets", URL: "https://shop.test/tablets", Output: "tablets.csv"},
	)
	results, err := New(session, cfg, WithOutputDir(dir), WithMetrics(metrics)).Run(context.Background(), cfg.Tasks)

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr), "error = %v", err)
	assert.Equal(t, "laptops", taskErr.Task)
	assert.Equal(t, StageExtract, taskErr.Stage)

	var parse *ParseError
	require.True(t, errors.As(err, &parse))
	assert.Equal(t, "num_of_reviews", parse.Field)

	require.Len(t, results, 1)
	assert.Equal(t, "computers", results[0].Task.Name)
	assert.Equal(t, 2, session.opened, "tasks after the failure must not start")
	assert.True(t, broken.closed, "page of the failed task must be closed")

	assert.FileExists(t, filepath.Join(dir, "computers.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "laptops.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "tablets.csv"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("parse")))
}

func TestRunTaskStages(t *testing.T) {
	boom := errors.New("boom")
	task := config.Task{Name: "touch", URL: "https://shop.test/touch", Output: "touch.csv"}

	tests := []struct {
		name      string
		session   *fakeSession
		store     Store
		stage     string
		errorType string
	}{
		{
			name:      "open",
			session:   &fakeSession{err: boom},
			stage:     StageOpen,
			errorType: "other",
		},
		{
			name:      "navigate",
			session:   &fakeSession{pages: []*fakePage{{navErr: boom}}},
			stage:     StageNavigate,
			errorType: "navigation",
		},
		{
			name:      "paginate",
			session:   &fakeSession{pages: []*fakePage{{batches: 1000}}},
			stage:     StagePaginate,
			errorType: "pagination_limit",
		},
		{
			name:      "html",
			session:   &fakeSession{pages: []*fakePage{{htmlErr: boom}}},
			stage:     StageExtract,
			errorType: "other",
		},
		{
			name:      "store",
			session:   &fakeSession{pages: []*fakePage{{html: fixturePage(fixtureCards)}}},
			store:     &recordingStore{err: boom},
			stage:     StageStore,
			errorType: "store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSiteConfig(task)
			cfg.Pagination.MaxClicks = 5
			opts := []Option{WithOutputDir(t.TempDir())}
			if tt.store != nil {
				opts = append(opts, WithStore(tt.store))
			}

			_, err := New(tt.session, cfg, opts...).RunTask(context.Background(), task)

			var taskErr *TaskError
			require.True(t, errors.As(err, &taskErr), "error = %v", err)
			assert.Equal(t, tt.stage, taskErr.Stage)
			assert.Equal(t, tt.errorType, ErrorType(err))
			for _, p := range tt.session.pages {
				assert.True(t, p.closed)
			}
		})
	}
}

func TestRunTaskSinkFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "touch.csv", "occupied"), 0o755))

	task := config.Task{Name: "touch", URL: "https://shop.test/touch", Output: "touch.csv"}
	session := &fakeSession{pages: []*fakePage{{html: fixturePage(fixtureCards)}}}

	_, err := New(session, testSiteConfig(task), WithOutputDir(dir)).RunTask(context.Background(), task)
	assert.Equal(t, "sink", ErrorType(err))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &fakeSession{pages: []*fakePage{{html: fixturePage(fixtureCards)}}}
	cfg := testSiteConfig(config.Task{Name: "home", URL: "https://shop.test/", Output: "home.csv"})

	results, err := New(session, cfg, WithOutputDir(t.TempDir())).Run(ctx, cfg.Tasks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Zero(t, session.opened)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "unknown", ErrorType(nil))
	assert.Equal(t, "extraction", ErrorType(&TaskError{Task: "x", Stage: StageExtract, Err: &ExtractionError{Field: "title"}}))
	assert.Equal(t, "other", ErrorType(errors.New("plain")))
	assert.Equal(t, "navigation", ErrorType(&TaskError{Stage: StageNavigate, Err: errors.New("dns")}))
	assert.Equal(t, "unsupported_backend", ErrorType(&TaskError{Stage: StagePaginate, Err: browser.ErrUnsupported}))
}
