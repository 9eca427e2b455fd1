package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "abb_adapter"

// Metrics содержит метрики жизненного цикла и каналов движения.
// Все методы безопасны для nil-получателя, чтобы метрики были необязательными.
type Metrics struct {
	LifecycleState     prometheus.Gauge
	ActivationAttempts prometheus.Counter
	Cycles             *prometheus.CounterVec
	StaleReads         prometheus.Counter
	WriteFailures      prometheus.Counter
	MessagesReceived   *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
}

// NewMetrics создает метрики и регистрирует их в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LifecycleState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "state",
			Help:      "Lifecycle state (0=unconfigured, 1=inactive, 2=active, 3=error)",
		}),
		ActivationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "activation_attempts_total",
			Help:      "Total number of attempts to observe a message from the controller during activation",
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of read/write cycles",
		}, []string{"operation"}),
		StaleReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "stale_reads_total",
			Help:      "Read cycles that kept last-known-good state because no fresh message arrived",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "write_failures_total",
			Help:      "Write cycles where at least one channel failed to transmit",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egm",
			Name:      "messages_received_total",
			Help:      "Total number of EGM messages received from the controller",
		}, []string{"group"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egm",
			Name:      "messages_sent_total",
			Help:      "Total number of EGM messages sent to the controller",
		}, []string{"group"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egm",
			Name:      "decode_errors_total",
			Help:      "Total number of EGM datagrams that could not be decoded",
		}, []string{"group"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LifecycleState,
			m.ActivationAttempts,
			m.Cycles,
			m.StaleReads,
			m.WriteFailures,
			m.MessagesReceived,
			m.MessagesSent,
			m.DecodeErrors,
		)
	}
	return m
}

func (m *Metrics) SetLifecycleState(state int) {
	if m == nil {
		return
	}
	m.LifecycleState.Set(float64(state))
}

func (m *Metrics) IncActivationAttempts() {
	if m == nil {
		return
	}
	m.ActivationAttempts.Inc()
}

func (m *Metrics) IncCycle(operation string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncStaleReads() {
	if m == nil {
		return
	}
	m.StaleReads.Inc()
}

func (m *Metrics) IncWriteFailures() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

func (m *Metrics) IncReceived(group string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(group).Inc()
}

func (m *Metrics) IncSent(group string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(group).Inc()
}

func (m *Metrics) IncDecodeErrors(group string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(group).Inc()
}
