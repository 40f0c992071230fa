package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Browser backends understood by the browser package.
const (
	BackendRod    = "rod"
	BackendStatic = "static"
)

// AppConfig holds infrastructure config from standard env vars
type AppConfig struct {
	DBPath     string
	ConfigPath string // Path to the YAML config file
	OutputDir  string

	GeminiAPIKey   string
	EmbeddingModel string // empty selects the ai package default
}

// SiteConfig holds all target-site specific settings (from YAML)
type SiteConfig struct {
	BaseURL    string     `yaml:"base_url"`
	Tasks      []Task     `yaml:"tasks"`
	Selectors  Selectors  `yaml:"selectors"`
	Pagination Pagination `yaml:"pagination"`
	Browser    Browser    `yaml:"browser"`
}

// Task is one category page and the CSV file it is written to.
type Task struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Output string `yaml:"output"`
}

type Selectors struct {
	CookieButton string `yaml:"cookie_button"`
	LoadMore     string `yaml:"load_more"`
	Card         string `yaml:"card"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Price        string `yaml:"price"`
	Ratings      string `yaml:"ratings"`
	StarIcon     string `yaml:"star_icon"`
	RatingAttr   string `yaml:"rating_attr"`
	Reviews      string `yaml:"reviews"`
}

type Pagination struct {
	SettleInterval time.Duration `yaml:"settle_interval"`
	MaxClicks      int           `yaml:"max_clicks"`
	ClickTimeout   time.Duration `yaml:"click_timeout"`
}

type Browser struct {
	Backend           string        `yaml:"backend"`
	Headful           bool          `yaml:"headful"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	UserAgent         string        `yaml:"user_agent"`
}

const testSiteBase = "https://webscraper.io/test-sites/e-commerce/more"

// SelectorNone switches off an optional selector (cookie_button, star_icon,
// rating_attr) that would otherwise fall back to its default.
const SelectorNone = "none"

// DefaultSiteConfig targets the "load more" variant of the webscraper.io
// e-commerce test site.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		BaseURL: testSiteBase,
		Tasks: []Task{
			{Name: "home", URL: testSiteBase, Output: "home.csv"},
			{Name: "computers", URL: testSiteBase + "/computers", Output: "computers.csv"},
			{Name: "laptops", URL: testSiteBase + "/computers/laptops", Output: "laptops.csv"},
			{Name: "tablets", URL: testSiteBase + "/computers/tablets", Output: "tablets.csv"},
			{Name: "phones", URL: testSiteBase + "/phones", Output: "phones.csv"},
			{Name: "touch", URL: testSiteBase + "/phones/touch", Output: "touch.csv"},
		},
		Selectors:  defaultSelectors(),
		Pagination: defaultPagination(),
		Browser:    defaultBrowser(),
	}
}

func defaultSelectors() Selectors {
	return Selectors{
		CookieButton: ".acceptCookies",
		LoadMore:     ".ecomerce-items-scroll-more",
		Card:         ".thumbnail",
		Title:        ".title",
		Description:  ".description",
		Price:        ".price",
		Ratings:      ".ratings",
		StarIcon:     ".ws-icon-star, .glyphicon-star",
		RatingAttr:   "p[data-rating]",
		Reviews:      ".review-count",
	}
}

func defaultPagination() Pagination {
	return Pagination{
		SettleInterval: 1 * time.Second,
		MaxClicks:      100,
		ClickTimeout:   10 * time.Second,
	}
}

func defaultBrowser() Browser {
	return Browser{
		Backend:           BackendRod,
		NavigationTimeout: 90 * time.Second,
	}
}

// GetAppConfig reads basic infrastructure settings from environment variables.
func GetAppConfig() (AppConfig, error) {
	dbPath := os.Getenv("DB_PATH")
	configPath := os.Getenv("CONFIG_PATH")
	outputDir := os.Getenv("OUTPUT_DIR")

	// Set defaults if not provided
	if dbPath == "" {
		dbPath = "./local-data/catalog.db"
	}
	if configPath == "" {
		configPath = "config.yaml"
	}
	if outputDir == "" {
		outputDir = "output"
	}

	return AppConfig{
		DBPath:     dbPath,
		ConfigPath: configPath,
		OutputDir:  outputDir,

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
	}, nil
}

// LoadSiteConfig reads the YAML file to configure the scraper. Fields left
// out of the file keep their defaults.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}
	cfg, err := ParseSiteConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file '%s': %w", path, err)
	}
	return cfg, nil
}

// ParseSiteConfig decodes YAML, applies defaults and validates the result.
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued settings from DefaultSiteConfig. Tasks are
// only defaulted when the list is empty. Optional selectors set to
// SelectorNone end up empty.
func (c *SiteConfig) ApplyDefaults() {
	def := DefaultSiteConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if len(c.Tasks) == 0 {
		c.Tasks = def.Tasks
	}
	for i := range c.Tasks {
		t := &c.Tasks[i]
		if t.URL != "" && !strings.Contains(t.URL, "://") {
			t.URL = strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(t.URL, "/")
		}
		if t.Output == "" && t.Name != "" {
			t.Output = t.Name + ".csv"
		}
	}

	s, ds := &c.Selectors, def.Selectors
	fillOptional(&s.CookieButton, ds.CookieButton)
	fill(&s.LoadMore, ds.LoadMore)
	fill(&s.Card, ds.Card)
	fill(&s.Title, ds.Title)
	fill(&s.Description, ds.Description)
	fill(&s.Price, ds.Price)
	fill(&s.Ratings, ds.Ratings)
	fillOptional(&s.StarIcon, ds.StarIcon)
	fillOptional(&s.RatingAttr, ds.RatingAttr)
	fill(&s.Reviews, ds.Reviews)

	if c.Pagination.SettleInterval == 0 {
		c.Pagination.SettleInterval = def.Pagination.SettleInterval
	}
	if c.Pagination.MaxClicks == 0 {
		c.Pagination.MaxClicks = def.Pagination.MaxClicks
	}
	if c.Pagination.ClickTimeout == 0 {
		c.Pagination.ClickTimeout = def.Pagination.ClickTimeout
	}
	if c.Browser.Backend == "" {
		c.Browser.Backend = def.Browser.Backend
	}
	if c.Browser.NavigationTimeout == 0 {
		c.Browser.NavigationTimeout = def.Browser.NavigationTimeout
	}
}

func fill(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillOptional(dst *string, def string) {
	switch strings.TrimSpace(*dst) {
	case SelectorNone:
		*dst = ""
	case "":
		*dst = def
	}
}

// Validate ensures all configuration values are coherent.
func (c *SiteConfig) Validate() error {
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}

	names := make(map[string]bool, len(c.Tasks))
	outputs := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task %d: name cannot be empty", i)
		}
		if names[t.Name] {
			return fmt.Errorf("task %q: duplicate name", t.Name)
		}
		names[t.Name] = true

		u, err := url.Parse(t.URL)
		if err != nil {
			return fmt.Errorf("task %q: invalid url: %w", t.Name, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("task %q: url must be absolute", t.Name)
		}

		if filepath.Ext(t.Output) != ".csv" {
			return fmt.Errorf("task %q: output %q must be a .csv file", t.Name, t.Output)
		}
		if filepath.Base(t.Output) != t.Output {
			return fmt.Errorf("task %q: output %q must be a bare file name", t.Name, t.Output)
		}
		if outputs[t.Output] {
			return fmt.Errorf("task %q: output %q already used", t.Name, t.Output)
		}
		outputs[t.Output] = true
	}

	required := map[string]string{
		"card":        c.Selectors.Card,
		"title":       c.Selectors.Title,
		"description": c.Selectors.Description,
		"price":       c.Selectors.Price,
		"ratings":     c.Selectors.Ratings,
		"reviews":     c.Selectors.Reviews,
	}
	for name, sel := range required {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("selector %q cannot be empty", name)
		}
	}
	if c.Selectors.StarIcon == "" && c.Selectors.RatingAttr == "" {
		return fmt.Errorf("star_icon and rating_attr cannot both be %q", SelectorNone)
	}

	if c.Pagination.SettleInterval < 0 {
		return fmt.Errorf("settle interval cannot be negative")
	}
	if c.Pagination.MaxClicks <= 0 {
		return fmt.Errorf("max clicks must be positive")
	}
	if c.Pagination.ClickTimeout <= 0 {
		return fmt.Errorf("click timeout must be positive")
	}

	switch c.Browser.Backend {
	case BackendRod, BackendStatic:
	default:
		return fmt.Errorf("unknown browser backend %q (want %s or %s)", c.Browser.Backend, BackendRod, BackendStatic)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}

	return nil
}

// FilterTasks keeps only the named tasks, in config order. An empty filter
// keeps everything.
func (c *SiteConfig) FilterTasks(names []string) ([]Task, error) {
	if len(names) == 0 {
		return c.Tasks, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var tasks []Task
	for _, t := range c.Tasks {
		if want[t.Name] {
			tasks = append(tasks, t)
			delete(want, t.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown task %q", n)
	}
	return tasks, nil
}
