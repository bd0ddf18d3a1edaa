package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	starRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	starRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	starLedgerHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starledger_ledger_height",
		Help: "Height of the ledger tip.",
	})

	starBlocksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starledger_blocks_appended_total",
		Help: "Total star blocks appended to the ledger.",
	})

	starProofsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starledger_proofs_rejected_total",
		Help: "Total rejected ownership proofs by reason.",
	}, []string{"reason"})

	starChainProblems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starledger_chain_problems",
		Help: "Problems reported by the most recent full-chain validation.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		starRequestsTotal.WithLabelValues(method, path, status).Inc()
		starRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a committed block at height.
func RecordAppend(height int64) {
	starBlocksAppendedTotal.Inc()
	starLedgerHeight.Set(float64(height))
}

// SetLedgerHeight sets the height gauge, e.g. after genesis.
func SetLedgerHeight(height int64) {
	starLedgerHeight.Set(float64(height))
}

// RecordRejection records an ownership proof refused for reason.
func RecordRejection(reason string) {
	starProofsRejectedTotal.WithLabelValues(reason).Inc()
}

// SetChainProblems records the outcome of a full-chain validation.
func SetChainProblems(n int) {
	starChainProblems.Set(float64(n))
}
