package monitoring

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
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

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codequest_runs_total",
			Help: "Maintenance runs by command and outcome",
		},
		[]string{"command", "status"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codequest_run_duration_seconds",
			Help:    "Duration of maintenance runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		},
		[]string{"command"},
	)

	LastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codequest_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		},
		[]string{"command"},
	)

	IssuesFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codequest_issues_total",
			Help: "Data issues found by kind and severity",
		},
		[]string{"kind", "severity"},
	)

	BatchCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codequest_batch_commits_total",
			Help: "Firestore batch commits by result",
		},
		[]string{"result"},
	)

	BatchOps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codequest_batch_ops_total",
		Help: "Write operations sent in batches",
	})

	CommitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codequest_commit_retries_total",
		Help: "Batch commits retried after a transient failure",
	})

	AchievementsGranted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codequest_achievements_granted_total",
		Help: "Achievements granted to users",
	})
)

var initOnce sync.Once

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RequestCounter,
		RequestDuration,
		RunsTotal,
		RunDuration,
		LastRunTimestamp,
		IssuesFound,
		BatchCommits,
		BatchOps,
		CommitRetries,
		AchievementsGranted,
	}
}

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

// ObserveRun records the outcome of a finished run.
func ObserveRun(command string, started time.Time, err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	RunsTotal.WithLabelValues(command, status).Inc()
	RunDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
	LastRunTimestamp.WithLabelValues(command).SetToCurrentTime()
}

// ObserveCommit records one batch commit.
func ObserveCommit(ops int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	BatchCommits.WithLabelValues(result).Inc()
	BatchOps.Add(float64(ops))
}

// Push sends the default registry to a Pushgateway. CLI runs are too
// short-lived to be scraped.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
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
