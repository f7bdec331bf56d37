package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamestats_events_published_total",
		Help: "Total number of events recorded in history, labelled by event type; unknown types share the 'other' label.",
	}, []string{"event_type"})

	HandlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamestats_handler_panics_total",
		Help: "Total number of subscriber panics recovered during dispatch, labelled by event type; unknown types share the 'other' label.",
	}, []string{"event_type"})

	DepthExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamestats_publish_depth_exceeded_total",
		Help: "Total number of nested publishes rejected for exceeding the maximum depth.",
	})

	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamestats_events_enqueued_total",
		Help: "Total number of events placed on the async dispatch queue.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamestats_events_dropped_total",
		Help: "Total number of events rejected due to a full or closed queue.",
	})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamestats_dispatch_duration_seconds",
		Help:    "Time spent fanning one event out to its subscribers.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"event_type"})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamestats_queue_utilization_ratio",
		Help: "Current async dispatch queue utilization (0–1).",
	})

	ReportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamestats_reports_generated_total",
		Help: "Total number of statistics reports produced.",
	})
)
