package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usersync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the users API.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usersync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Users API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usersync",
			Name:      "tasks_total",
			Help:      "Settled collection sync tasks by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usersync",
			Name:      "task_duration_seconds",
			Help:      "Time from issuing a collection sync task to its settlement.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Task outcomes.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeRejected  = "rejected"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, tasks, taskDuration)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTask(op, outcome string, duration time.Duration) {
	RegisterMetrics()
	tasks.WithLabelValues(op, outcome).Inc()
	taskDuration.WithLabelValues(op).Observe(duration.Seconds())
}
