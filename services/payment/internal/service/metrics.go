package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics исходы создания платежа
type Metrics struct {
	created *prometheus.CounterVec
}

// NewMetrics создаёт счётчики; регистрирует их app через metrics.Registry
func NewMetrics() *Metrics {
	return &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_create_total",
			Help: "CreatePayment outcomes: created, replayed, order_not_found, order_check_failed, invalid, error.",
		}, []string{"outcome"}),
	}
}

// Collectors для регистрации в реестре
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.created}
}

func (m *Metrics) outcome(name string) {
	m.created.WithLabelValues(name).Inc()
}
