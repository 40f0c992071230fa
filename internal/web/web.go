package web

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mspro-labs/catalog-scraper/internal/ai"
	"mspro-labs/catalog-scraper/internal/db"
	"mspro-labs/catalog-scraper/internal/logger"
	"mspro-labs/catalog-scraper/internal/searcher"
)

//go:embed templates
var Assets embed.FS

// MinScore hides search matches below 20% similarity.
const MinScore = 0.2

var funcMap = template.FuncMap{
	"mul":   func(a, b float32) float32 { return a * b },
	"stars": stars,
}

func stars(n int) string {
	n = max(0, min(n, 5))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// Server renders the product list and semantic search pages.
type Server struct {
	database   *sql.DB
	client     ai.Embedder
	gatherer   prometheus.Gatherer
	homeTmpl   *template.Template
	searchTmpl *template.Template
	log        zerolog.Logger
}

// NewServer parses the embedded templates. client may be nil, in which case
// only cached queries can be searched. gatherer, when set, is served on /metrics.
func NewServer(database *sql.DB, client ai.Embedder, gatherer prometheus.Gatherer) (*Server, error) {
	// Home and search are parsed separately so their blocks don't collide.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(Assets, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}

	homeTmpl, err := template.Must(base.Clone()).ParseFS(Assets, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse home template: %w", err)
	}
	searchTmpl, err := template.Must(base.Clone()).ParseFS(Assets, "templates/search.html")
	if err != nil {
		return nil, fmt.Errorf("parse search template: %w", err)
	}

	return &Server{
		database:   database,
		client:     client,
		gatherer:   gatherer,
		homeTmpl:   homeTmpl,
		searchTmpl: searchTmpl,
		log:        logger.For("web"),
	}, nil
}

// Handler returns the routes of the UI.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.home)
	mux.HandleFunc("/search", s.search)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	products, err := db.GetActiveProducts(s.database)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load products")
		http.Error(w, "Failed to load products", http.StatusInternalServerError)
		return
	}

	if err := s.homeTmpl.ExecuteTemplate(w, "base.html", products); err != nil {
		s.log.Error().Err(err).Msg("template error")
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	results, err := searcher.Perform(r.Context(), s.database, s.client, query, searcher.DefaultLimit)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("search failed")
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	data := struct {
		Query   string
		Results []searcher.Result
	}{
		Query:   query,
		Results: searcher.Filter(results, MinScore),
	}
	if err := s.searchTmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.log.Error().Err(err).Msg("template error")
	}
}
