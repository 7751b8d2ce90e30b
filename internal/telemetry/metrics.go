// Package telemetry exposes prometheus metrics for the decision engine and
// the event pipeline, with an optional HTTP endpoint for scraping.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_evaluations_total",
			Help: "Total evaluations by decision kind and reason",
		},
		[]string{"kind", "reason"},
	)
	EventsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_queued_total",
			Help: "Events accepted into the in-memory queue",
		},
	)
	EventsDeduped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_deduped_total",
			Help: "Events suppressed by the dedup cache",
		},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Events dropped because the queue was full",
		},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_dispatch_total",
			Help: "Dispatch attempts by outcome",
		},
		[]string{"status"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_queue_depth",
			Help: "Events currently buffered for flush",
		},
	)
	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_flush_duration_seconds",
			Help:    "Flush duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// Init registers all metrics with the default registry. Safe to call from
// every composition root; registration happens once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EvaluationsTotal, EventsQueued, EventsDeduped, EventsDropped,
			DispatchTotal, QueueDepth, FlushDuration,
		)
	})
}

// Server exposes /metrics for scraping.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics server listening on addr.
func NewServer(addr string) *Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves until Shutdown. A shutdown-initiated stop returns nil.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
