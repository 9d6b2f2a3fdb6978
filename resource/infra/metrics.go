package infra

import (
	"time"

	"resource-scheduler/resource/application"
	"resource-scheduler/resource/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ application.MetricsHook = (*PromMetrics)(nil)

// PromMetrics implementa application.MetricsHook com métricas Prometheus.
type PromMetrics struct {
	registry *prometheus.Registry

	enqueued       prometheus.Counter
	queued         prometheus.Gauge
	inFlight       prometheus.Gauge
	accesses       *prometheus.CounterVec
	accessDuration prometheus.Histogram
	accessWait     prometheus.Histogram
	cooldownWait   prometheus.Histogram
}

// waitBuckets cobre de 1s até alguns cooldowns de 120s.
var waitBuckets = []float64{1, 5, 10, 30, 60, 120, 240, 480, 960}

func NewPromMetrics(registry *prometheus.Registry) *PromMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	f := promauto.With(registry)

	return &PromMetrics{
		registry: registry,
		enqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "requests_total",
			Help:      "Total number of submitted requests",
		}),
		queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "queued_requests",
			Help:      "Requests waiting in the priority queue",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "inflight_tasks",
			Help:      "Dispatched requests not yet completed",
		}),
		accesses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "accesses_total",
			Help:      "Completed requests by status",
		}, []string{"status"}),
		accessDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "access_duration_seconds",
			Help:      "Duration of the resource access itself",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		accessWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "access_wait_seconds",
			Help:      "Time from enqueue to access start",
			Buckets:   waitBuckets,
		}),
		cooldownWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource",
			Subsystem: "scheduler",
			Name:      "cooldown_wait_seconds",
			Help:      "Time a task spent blocked on the cooldown gate",
			Buckets:   waitBuckets,
		}),
	}
}

func (m *PromMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PromMetrics) OnEnqueue(*application.Request) {
	m.enqueued.Inc()
	m.queued.Inc()
}

func (m *PromMetrics) OnDequeue(*application.Request) {
	m.queued.Dec()
	m.inFlight.Inc()
}

func (m *PromMetrics) OnCooldownWait(d time.Duration) {
	m.cooldownWait.Observe(d.Seconds())
}

func (m *PromMetrics) OnComplete(ev domain.AccessEvent) {
	m.inFlight.Dec()
	m.accesses.WithLabelValues(string(ev.Status)).Inc()
	if ev.Duration > 0 {
		m.accessDuration.Observe(ev.Duration.Seconds())
	}
	if ev.Waited > 0 {
		m.accessWait.Observe(ev.Waited.Seconds())
	}
}
