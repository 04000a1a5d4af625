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
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcptrust_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcptrust_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	resolverVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcptrust_resolver_votes_total",
		Help: "TXT verification votes by resolver and outcome.",
	}, []string{"resolver", "vote"})

	ownershipChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcptrust_ownership_checks_total",
		Help: "Current-ownership checks by the method that succeeded (none on failure).",
	}, []string{"method"})

	challengeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcptrust_challenge_events_total",
		Help: "Ownership challenge lifecycle events.",
	}, []string{"event"})

	trustScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mcptrust_trust_score",
		Help:    "Distribution of computed trust scores.",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcptrust_probes_total",
		Help: "Endpoint liveness probes by result.",
	}, []string{"result"})

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mcptrust_probe_duration_seconds",
		Help:    "Endpoint probe duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	trackedDomains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcptrust_tracked_domains",
		Help: "Domains with cached health history.",
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

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordResolverVote records one resolver's TXT vote.
func RecordResolverVote(resolver string, yes bool) {
	vote := "no"
	if yes {
		vote = "yes"
	}
	resolverVotesTotal.WithLabelValues(resolver, vote).Inc()
}

// RecordOwnershipMethod records the outcome of a current-ownership check.
func RecordOwnershipMethod(method string) {
	ownershipChecksTotal.WithLabelValues(method).Inc()
}

// RecordChallengeEvent records a challenge lifecycle event.
func RecordChallengeEvent(event string) {
	challengeEventsTotal.WithLabelValues(event).Inc()
}

// RecordTrustScore records a computed trust score.
func RecordTrustScore(score int) {
	trustScores.Observe(float64(score))
}

// RecordProbe records an endpoint probe result.
func RecordProbe(reachable bool, elapsed time.Duration) {
	if reachable {
		probesTotal.WithLabelValues("success").Inc()
	} else {
		probesTotal.WithLabelValues("failure").Inc()
	}
	probeDuration.Observe(elapsed.Seconds())
}

// SetTrackedDomains sets the health-history gauge.
func SetTrackedDomains(n int) {
	trackedDomains.Set(float64(n))
}
