package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry       *prometheus.Registry
	TasksTotal     *prometheus.CounterVec
	ProductsTotal  *prometheus.CounterVec
	LoadMoreClicks *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	ErrorsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_scraper_tasks_total",
			Help: "Page tasks finished, by outcome.",
		},
		[]string{"status"},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_scraper_products_total",
			Help: "Products extracted and written, by task.",
		},
		[]string{"task"},
	)
	clicks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_scraper_load_more_clicks_total",
			Help: "Load-more clicks performed, by task.",
		},
		[]string{"task"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_scraper_task_duration_seconds",
			Help:    "Wall time of a page task from navigation to sink.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"task"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_scraper_errors_total",
			Help: "Task failures by error type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(tasks, products, clicks, duration, errorsTotal)

	return &Metrics{
		Registry:       registry,
		TasksTotal:     tasks,
		ProductsTotal:  products,
		LoadMoreClicks: clicks,
		TaskDuration:   duration,
		ErrorsTotal:    errorsTotal,
	}
}

func (m *Metrics) taskSucceeded(task string, products, clicks int, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues("ok").Inc()
	m.ProductsTotal.WithLabelValues(task).Add(float64(products))
	m.LoadMoreClicks.WithLabelValues(task).Add(float64(clicks))
	m.TaskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *Metrics) taskFailed(err error) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues("error").Inc()
	m.ErrorsTotal.WithLabelValues(ErrorType(err)).Inc()
}
