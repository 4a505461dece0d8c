package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_applied_total",
		Help: "The total number of events applied by a consumer",
	}, []string{"consumer", "event_type"})
	eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_skipped_total",
		Help: "The total number of duplicate or unhandled events skipped",
	}, []string{"consumer", "reason"})
	eventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_dead_lettered_total",
		Help: "The total number of events escalated to the dead-letter handler",
	}, []string{"consumer"})
	processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bus_processing_duration_seconds",
		Help:    "Time taken to process one event",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"consumer"})
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_events_published_total",
		Help: "The total number of events published to the broker",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
)
