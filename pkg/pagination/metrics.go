package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesTotal counts completed page loads by collection and outcome
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placemark_pagination_pages_total",
			Help: "Total number of page loads by collection and outcome",
		},
		[]string{"collection", "outcome"}, // "ok", "error", "stale"
	)

	// ItemsTotal counts items appended to accumulated lists
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placemark_pagination_items_total",
			Help: "Total number of items appended to accumulated lists",
		},
		[]string{"collection"},
	)

	// DuplicatesTotal counts items dropped because their ID was already accumulated
	DuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placemark_pagination_duplicates_total",
			Help: "Total number of duplicate items dropped across pages",
		},
		[]string{"collection"},
	)

	// StalledCursors counts pages whose next cursor did not advance
	StalledCursors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placemark_pagination_stalled_cursor_total",
			Help: "Total number of pages reporting a next page without advancing the cursor",
		},
		[]string{"collection"},
	)

	// PageDuration tracks page load latency
	PageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placemark_pagination_page_duration_seconds",
			Help:    "Page load duration in seconds by collection",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"collection"},
	)
)
