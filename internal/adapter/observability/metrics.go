// Package observability provides logging, metrics, and tracing for the jobs.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_source_runs_total",
			Help: "Collector source attempts by outcome",
		},
		[]string{"source", "status"},
	)
	RawListingsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_raw_listings_inserted_total",
			Help: "Raw listing rows inserted (duplicates excluded)",
		},
		[]string{"source"},
	)
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_source_fetch_duration_seconds",
			Help:    "Duration of connector FetchNew calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)
	CircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_open",
			Help: "1 when the source circuit breaker is open",
		},
		[]string{"source"},
	)

	ProcessedItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_items_total",
			Help: "Raw items handled by the processor by outcome",
		},
		[]string{"status"},
	)
	ListingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_listing_events_total",
			Help: "Listing upsert events published by outcome",
		},
		[]string{"status"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_total",
			Help: "Notification delivery attempts by outcome",
		},
		[]string{"status"},
	)
	NotifierImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_images_total",
			Help: "Image delivery outcomes (success, fallback, none)",
		},
		[]string{"outcome"},
	)
)

var metricsOnce sync.Once

// InitMetrics registers all pipeline metrics with the default registry.
// Safe to call from every binary.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			SourceRunsTotal,
			RawListingsInsertedTotal,
			SourceFetchDuration,
			CircuitOpen,
			ProcessedItemsTotal,
			ListingEventsTotal,
			NotificationsTotal,
			NotifierImagesTotal,
		)
	})
}
