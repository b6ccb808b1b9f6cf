// Package metrics exposes prometheus collectors for screen rendering, handler
// dispatch, permission denials, persistence and jobs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgscreens"

var (
	// Registry holds the framework collectors.
	Registry = prometheus.NewRegistry()

	renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screens",
			Name:      "renders_total",
			Help:      "Screen renders by screen and delivery mode.",
		},
		[]string{"screen", "mode"},
	)

	handlerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "calls_total",
			Help:      "Handler invocations by handler name and outcome.",
		},
		[]string{"handler", "outcome"},
	)

	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "duration_seconds",
			Help:      "Handler execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"handler"},
	)

	permissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "permissions",
			Name:      "denials_total",
			Help:      "Handler calls routed to a permission's denial handler.",
		},
		[]string{"permission"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation.",
		},
		[]string{"op"},
	)

	flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "flushes_total",
			Help:      "Explicit persistence flushes by result.",
		},
		[]string{"status"},
	)

	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "calls_total",
			Help:      "Queued Telegram API calls by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	sendQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "queue_length",
			Help:      "Telegram API calls waiting for a worker.",
		},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job executions by job and status.",
		},
		[]string{"job", "status"},
	)
)

func init() {
	Registry.MustRegister(
		renders,
		handlerCalls,
		handlerDuration,
		permissionDenials,
		storeErrors,
		flushes,
		sends,
		sendQueue,
		jobRuns,
		prometheus.NewGoCollector(),
	)
}

// ObserveRender records a delivered render; mode is "new" or "edit".
func ObserveRender(screen, mode string) {
	renders.WithLabelValues(screen, mode).Inc()
}

// ObserveHandler records a handler invocation.
func ObserveHandler(handler string, took time.Duration, err error) {
	handlerCalls.WithLabelValues(handler, outcome(err)).Inc()
	handlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

// ObservePermissionDenied records a denial by the named permission.
func ObservePermissionDenied(permission string) {
	permissionDenials.WithLabelValues(permission).Inc()
}

// ObserveStoreError records a failed store operation.
func ObserveStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

// ObserveFlush records a persistence flush.
func ObserveFlush(err error) {
	flushes.WithLabelValues(outcome(err)).Inc()
}

// ObserveSend records the final outcome of a queued Telegram call.
func ObserveSend(action string, err error) {
	sends.WithLabelValues(action, outcome(err)).Inc()
}

// SetSendQueue reports the sender backlog.
func SetSendQueue(n int) {
	sendQueue.Set(float64(n))
}

// ObserveJob records a job execution.
func ObserveJob(job string, err error) {
	jobRuns.WithLabelValues(job, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
