// Package metrics exposes Prometheus gauges/counters for the scaler
// loop, trigger evaluator and job queue depth (spec §4.8/§4.9
// observability). Grounded on
// Lens/modules/core/pkg/router/middleware's promauto registration
// style, adapted from per-request HTTP metrics to Thorium's
// scheduling-loop metrics.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth reports the count of Created jobs waiting to be
	// claimed, keyed by (group, pipeline, stage) so operators can spot
	// a stalled requisition (spec §4.9 demand accounting).
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thorium_job_queue_depth",
			Help: "Number of Created jobs waiting to be claimed",
		},
		[]string{"group", "pipeline", "stage"},
	)

	// ScalerLoopDuration measures one pass of the scaler's plan/act
	// cycle (spec §4.9 "scaling decisions run on a fixed interval").
	ScalerLoopDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thorium_scaler_loop_duration_seconds",
			Help:    "Duration of one scaler plan/act cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scaler"},
	)

	// ScalerNodesAllocated tracks nodes currently allocated per cluster,
	// the supply side of the scaler's fair-share accounting.
	ScalerNodesAllocated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thorium_scaler_nodes_allocated",
			Help: "Nodes currently allocated by the scaler, per cluster",
		},
		[]string{"cluster", "scaler"},
	)

	// EvaluatorEventsProcessed counts events the trigger evaluator has
	// popped and resolved (matched or dropped), per event type
	// (spec §4.8 steps 1-6).
	EvaluatorEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_trigger_evaluator_events_total",
			Help: "Events processed by the trigger evaluator",
		},
		[]string{"event_type", "outcome"},
	)

	// EvaluatorBatchDuration measures one pop-augment-match-clear pass.
	EvaluatorBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thorium_trigger_evaluator_batch_duration_seconds",
			Help:    "Duration of one trigger evaluator batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_http_requests_total",
			Help: "Total HTTP requests served by the API",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thorium_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Handler wraps every route with request-count and latency
// observation, the way the teacher's HandleMetrics gin middleware
// does, skipping the /metrics scrape endpoint itself.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, statusLabel(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
