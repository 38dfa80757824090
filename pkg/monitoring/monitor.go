package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 业务指标
	SubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_submissions_total",
			Help: "Answer submissions by kind (mcq, interview) and result",
		},
		[]string{"kind", "result"},
	)

	AttemptExpirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attempt_expirations_total",
			Help: "Interview attempts moved to EXPIRED on access",
		},
	)

	SecretVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_secret_verifications_total",
			Help: "Session secret checks by stored variant (hashed, legacy_plain, none) and result",
		},
		[]string{"variant", "result"},
	)

	NotificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound candidate/recruiter notifications",
		},
		[]string{"channel", "result"},
	)

	MonitorConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attempt_monitor_connections",
			Help: "Open live attempt monitor websocket connections",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(SubmissionCounter)
		prometheus.MustRegister(AttemptExpirations)
		prometheus.MustRegister(SecretVerifications)
		prometheus.MustRegister(NotificationCounter)
		prometheus.MustRegister(MonitorConnections)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
