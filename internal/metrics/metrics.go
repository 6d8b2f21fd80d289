package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windykacja_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windykacja_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windykacja_dispatches_total",
			Help: "Dispatch attempts by stage, channel, and outcome",
		},
		[]string{"stage", "channel", "outcome"},
	)

	dispatchSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windykacja_dispatch_skipped_total",
			Help: "Dispatches skipped before delivery, by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	stageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windykacja_stage_runs_total",
			Help: "Stage batch runs by stage and trigger source",
		},
		[]string{"stage", "trigger"},
	)

	stageRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windykacja_stage_run_duration_seconds",
			Help:    "Duration of one stage batch run",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)

	transportSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windykacja_transport_send_duration_seconds",
			Help:    "Delivery transport call latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"channel"},
	)

	schedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "windykacja_scheduler_ticks_total",
			Help: "Minute ticks processed by the scheduler trigger",
		},
	)

	rateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windykacja_rate_fetches_total",
			Help: "Exchange rate lookups by source (nbp, cache, fallback)",
		},
		[]string{"source"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDispatch records the outcome of one dispatch attempt.
func RecordDispatch(stage, channel, outcome string) {
	dispatchesTotal.WithLabelValues(stage, channel, outcome).Inc()
}

// RecordDispatchSkipped records a dispatch aborted before delivery.
func RecordDispatchSkipped(stage, reason string) {
	dispatchSkippedTotal.WithLabelValues(stage, reason).Inc()
}

// RecordStageRun records one stage batch run and its duration.
func RecordStageRun(stage, trigger string, duration time.Duration) {
	stageRunsTotal.WithLabelValues(stage, trigger).Inc()
	stageRunDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTransportSend records the latency of a delivery transport call.
func RecordTransportSend(channel string, duration time.Duration) {
	transportSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordSchedulerTick records one minute tick.
func RecordSchedulerTick() {
	schedulerTicksTotal.Inc()
}

// RecordRateFetch records where an exchange rate lookup was served from.
func RecordRateFetch(source string) {
	rateFetchesTotal.WithLabelValues(source).Inc()
}

// Middleware records request metrics for every HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		RecordRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
