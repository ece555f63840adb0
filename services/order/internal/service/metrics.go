package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics исходы координации заказа
type Metrics struct {
	coordination *prometheus.CounterVec
	links        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		coordination: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_coordination_total",
			Help: "Order coordination runs by trigger (create, resume) and outcome.",
		}, []string{"trigger", "outcome"}),
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_payment_link_total",
			Help: "payment.recorded events handled by outcome: linked, skipped.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.coordination, m.links}
}
