package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure stages of a dispatched event
const (
	StageLookup = "lookup"
	StageRender = "render"
	StageSend   = "send"
)

// Metrics holds the Prometheus metrics for notification dispatch.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsReceived    *prometheus.CounterVec
	EventsSkipped     *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	NotificationsFail *prometheus.CounterVec
	SendDurationSecs  prometheus.Histogram

	registry *prometheus.Registry
}

// New creates the metrics and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimegram_events_received_total",
			Help: "Total number of check events received from the event source",
		}, []string{"kind"}),
		EventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimegram_events_skipped_total",
			Help: "Total number of check events ignored because their kind is disabled",
		}, []string{"kind"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimegram_notifications_sent_total",
			Help: "Total number of notifications delivered to the channel",
		}, []string{"kind"}),
		NotificationsFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimegram_notifications_failed_total",
			Help: "Total number of check events dropped, by failing stage",
		}, []string{"kind", "stage"}),
		SendDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptimegram_send_duration_seconds",
			Help:    "Duration of channel send calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.EventsReceived,
		m.EventsSkipped,
		m.NotificationsSent,
		m.NotificationsFail,
		m.SendDurationSecs,
	)
	return m
}

func (m *Metrics) Received(kind string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) Skipped(kind string) {
	if m == nil {
		return
	}
	m.EventsSkipped.WithLabelValues(kind).Inc()
}

func (m *Metrics) Sent(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind).Inc()
	m.SendDurationSecs.Observe(took.Seconds())
}

func (m *Metrics) Failed(kind, stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsFail.WithLabelValues(kind, stage).Inc()
	if stage == StageSend {
		m.SendDurationSecs.Observe(took.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. A nil log uses
// slog.Default.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
