// Package metrics exposes Prometheus counters for the user registry and the
// access-code dispatcher. A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "userholder"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	OutcomeDropped   = "dropped"
	OutcomeThrottled = "throttled"
)

type Metrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	accessCodes   *prometheus.CounterVec
	imported      prometheus.Counter
	deliveries    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		accessCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_code_requests_total",
			Help:      "Access code refresh requests by outcome.",
		}, []string{"outcome"}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_identities_total",
			Help:      "Identities loaded through bulk import.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_code_deliveries_total",
			Help:      "Access code deliveries by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.registrations, m.logins, m.accessCodes, m.imported, m.deliveries)
	return m
}

func (m *Metrics) Registration(method, outcome string) {
	if m != nil {
		m.registrations.WithLabelValues(method, outcome).Inc()
	}
}

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AccessCode(outcome string) {
	if m != nil {
		m.accessCodes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Imported(n int) {
	if m != nil {
		m.imported.Add(float64(n))
	}
}

func (m *Metrics) Delivery(outcome string) {
	if m != nil {
		m.deliveries.WithLabelValues(outcome).Inc()
	}
}
