package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics exposes counters/histograms for the order intake flow.
type OrderMetrics struct {
	inboundTotal    *prometheus.CounterVec
	turnsTotal      *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	adapterLatency  *prometheus.HistogramVec
	outboundTotal   *prometheus.CounterVec
	duplicatesTotal prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhook deliveries",
		}, []string{"status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Conversation turns by path and result",
		}, []string{"path", "result"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "adapter_latency_seconds",
			Help:      "Latency of external calls (llm, partner, messaging, store)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"adapter", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "intake",
			Name:      "duplicate_messages_total",
			Help:      "Inbound messages skipped because their id was already processed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnsTotal, m.turnLatency, m.adapterLatency, m.outboundTotal, m.duplicatesTotal)
	return m
}

func (m *OrderMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

// ObserveTurn records the result of one dispatcher turn.
func (m *OrderMetrics) ObserveTurn(path, result string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(path, result).Inc()
	m.turnLatency.WithLabelValues(path).Observe(seconds)
}

func (m *OrderMetrics) ObserveAdapter(adapter string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.adapterLatency.WithLabelValues(adapter, status).Observe(seconds)
}

func (m *OrderMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *OrderMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}
