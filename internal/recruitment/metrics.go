package recruitment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are counted after commit only, so they never include rolled back
// work.
type Metrics struct {
	transitions *prometheus.CounterVec
	contacts    *prometheus.CounterVec
	grants      *prometheus.CounterVec
	publishes   *prometheus.CounterVec
	denials     *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "status_transitions_total",
			Help:      "Committed status transitions by entity kind and target status.",
		}, []string{"kind", "to"}),
		contacts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "contacts_total",
			Help:      "Recorded contacts by method and outcome.",
		}, []string{"method", "outcome"}),
		grants: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "access_grant_changes_total",
			Help:      "Grant and revoke calls that changed a grant.",
		}, []string{"action", "feature"}),
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "publishes_total",
			Help:      "Privacy-gated entities made public.",
		}, []string{"kind"}),
		denials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "authorization_denials_total",
			Help:      "Operations refused for lack of a grant or visibility.",
		}, []string{"operation"}),
		sideEffects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Name:      "side_effect_failures_total",
			Help:      "Post-commit event or notification deliveries that failed.",
		}, []string{"effect"}),
	}
}
