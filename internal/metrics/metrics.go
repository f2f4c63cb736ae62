// Package metrics exposes Prometheus counters for the watch loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for attempted runs.
const (
	OutcomePassed         = "passed"
	OutcomeTestsFailed    = "tests_failed"
	OutcomeFallback       = "fallback"
	OutcomeFailed         = "failed"
	OutcomeSkippedErrors  = "skipped_errors"
	OutcomeSkippedRunning = "skipped_running"
	OutcomeCanceled       = "canceled"
)

// Metrics holds the loop's collectors.
type Metrics struct {
	Events      *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Watching    prometheus.Gauge
	Reloads     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testloop",
			Name:      "events_total",
			Help:      "Filesystem events by classification.",
		}, []string{"kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testloop",
			Name:      "runs_total",
			Help:      "Run attempts by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "testloop",
			Name:      "run_duration_seconds",
			Help:      "Duration of test command invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		Watching: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "testloop",
			Name:      "watching",
			Help:      "1 while the workspace is being watched.",
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "testloop",
			Name:      "config_reloads_total",
			Help:      "Configuration reloads.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Runs, m.RunDuration, m.Watching, m.Reloads)
	}
	return m
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
