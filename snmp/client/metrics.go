package client

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/damianoneill/snmpasync/snmp/common"
)

const metricsNamespace = "snmpasync"

type sessionMetrics struct {
	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	probes       *prometheus.CounterVec
	invalidOps   prometheus.Counter
	sessions     prometheus.Gauge
}

func newSessionMetrics() *sessionMetrics {
	return &sessionMetrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "queries_total",
				Help:      "Queries completed, by request kind and result.",
			},
			[]string{"kind", "result"},
		),
		queryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "query_duration_seconds",
				Help:      "Query duration in seconds, including retransmissions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "engine_probes_total",
				Help:      "Engine discovery probes, by result.",
			},
			[]string{"result"},
		),
		invalidOps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "invalid_callback_ops_total",
				Help:      "Completions reported with an unknown operation code.",
			},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "open_sessions",
				Help:      "Sessions currently open.",
			},
		),
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	case errors.Is(err, common.ErrProbeFailed):
		return "probe_failed"
	}
	var pe *common.PacketError
	if errors.As(err, &pe) {
		return "packet_error"
	}
	return "error"
}

// NewMetricHooks delivers a trace that records session activity in prometheus metrics registered
// with reg. Combine it with a logging trace to have both.
func NewMetricHooks(reg prometheus.Registerer) (*SessionTrace, error) {
	m := newSessionMetrics()
	for _, c := range []prometheus.Collector{m.queries, m.queryLatency, m.probes, m.invalidOps, m.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &SessionTrace{
		ConnectDone: func(config *SessionConfig, err error, d time.Duration) {
			if err == nil {
				m.sessions.Inc()
			}
		},
		QueryDone: func(config *SessionConfig, kind common.Kind, err error, d time.Duration) {
			m.queries.WithLabelValues(kind.String(), resultLabel(err)).Inc()
			m.queryLatency.WithLabelValues(kind.String()).Observe(d.Seconds())
		},
		ProbeDone: func(config *SessionConfig, err error, d time.Duration) {
			m.probes.WithLabelValues(resultLabel(err)).Inc()
		},
		InvalidCallback: func(config *SessionConfig, err error) {
			m.invalidOps.Inc()
		},
		Closed: func(config *SessionConfig, err error) {
			m.sessions.Dec()
		},
	}, nil
}
