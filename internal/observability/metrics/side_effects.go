package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	SideEffectReasonDeadlineExceeded = "deadline_exceeded"
	SideEffectReasonUniqueViolation  = "unique_violation"
	SideEffectReasonDBUnavailable    = "db_unavailable"
	SideEffectReasonRedis            = "redis"
	SideEffectReasonNetwork          = "network"
	SideEffectReasonUnknown          = "unknown"
)

// SideEffectMetrics tracks background persist, update, notify and publish tasks.
type SideEffectMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	sideEffectMetricsOnce sync.Once
	sideEffectMetrics     *SideEffectMetrics
)

// SideEffects returns the process-wide side effect registry, registered on the default registerer.
func SideEffects(cfg Config) *SideEffectMetrics {
	sideEffectMetricsOnce.Do(func() {
		sideEffectMetrics = NewSideEffectMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sideEffectMetrics
}

// NewSideEffectMetrics registers the side effect collectors on registerer.
func NewSideEffectMetrics(registerer prometheus.Registerer, cfg Config) *SideEffectMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "payrelay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SideEffectMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payrelay_side_effect_runs_total",
			Help:        "Background side effect tasks started, by task.",
			ConstLabels: constLabels,
		}, []string{"task"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payrelay_side_effect_failures_total",
			Help:        "Background side effect failures by task and low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"task", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "payrelay_side_effect_duration_seconds",
			Help:        "Background side effect latency by task.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"task"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration)
	return m
}

// IncRun counts a started task.
func (m *SideEffectMetrics) IncRun(task string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(task).Inc()
}

// IncFailure counts a failed task, classifying err into a stable reason.
func (m *SideEffectMetrics) IncFailure(task string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(task, ClassifySideEffectReason(err)).Inc()
}

// ObserveDuration records how long a task ran.
func (m *SideEffectMetrics) ObserveDuration(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(task).Observe(d.Seconds())
}

// ClassifySideEffectReason maps an error to a label value.
func ClassifySideEffectReason(err error) string {
	var pgErr *pgconn.PgError
	var netErr net.Error
	switch {
	case err == nil:
		return SideEffectReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return SideEffectReasonDeadlineExceeded
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return SideEffectReasonUniqueViolation
	case errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08"):
		return SideEffectReasonDBUnavailable
	case errors.Is(err, redis.Nil), errors.Is(err, redis.ErrClosed):
		return SideEffectReasonRedis
	case errors.As(err, &netErr):
		return SideEffectReasonNetwork
	default:
		return SideEffectReasonUnknown
	}
}
