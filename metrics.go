package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/lotus-sign/filsign/pkg/message"
)

const metricsJobName = "filsign"

// Metrics contains the Prometheus metrics of a filsign run
type Metrics struct {
	registry *prometheus.Registry

	MessagesSigned *prometheus.CounterVec

	PushAttemptsTotal   prometheus.Counter
	PushAttemptsSuccess prometheus.Counter
	PushAttemptsFail    prometheus.Counter

	RPCRequests *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// NewMetrics registers the metrics on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		MessagesSigned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filsign_messages_signed_total",
			Help: "The total number of messages signed, by signature type",
		}, []string{"sig_type"}),
		PushAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "filsign_push_attempts_total",
			Help: "The total number of signed messages submitted to the node",
		}),
		PushAttemptsSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "filsign_push_attempts_success",
			Help: "The number of signed messages accepted by the node",
		}),
		PushAttemptsFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "filsign_push_attempts_fail",
			Help: "The number of signed messages rejected by the node",
		}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filsign_rpc_requests_total",
			Help: "The total number of Lotus API calls, by method and outcome",
		}, []string{"method", "outcome"}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filsign_rpc_request_duration_seconds",
			Help:    "Lotus API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// ObserveRPC matches rpc.CallObserver.
func (m *Metrics) ObserveRPC(method string, took time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.RPCRequests.WithLabelValues(method, outcome).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(took.Seconds())
}

// ObserveSigned counts a signed message.
func (m *Metrics) ObserveSigned(sm *message.SignedMessage) {
	m.MessagesSigned.WithLabelValues(sm.Signature.Type.String()).Inc()
}

// ObservePush counts a push attempt and its result.
func (m *Metrics) ObservePush(err error) {
	m.PushAttemptsTotal.Inc()
	if err != nil {
		m.PushAttemptsFail.Inc()
		return
	}
	m.PushAttemptsSuccess.Inc()
}

// Push sends the registry to a Prometheus pushgateway. The CLI exits right
// after, so nothing would be around to be scraped.
func (m *Metrics) Push(ctx context.Context, gatewayURL string) error {
	return push.New(gatewayURL, metricsJobName).
		Gatherer(m.registry).
		PushContext(ctx)
}
