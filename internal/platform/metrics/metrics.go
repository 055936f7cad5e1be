package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsSubmitted prometheus.Counter
	RequestsApproved  prometheus.Counter
	RequestsDenied    prometheus.Counter
	GrantsRevoked     prometheus.Counter
	ExpiriesObserved  prometheus.Counter
	GrantChecks       *prometheus.CounterVec
	LedgerAppends     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTesting creates metrics on a private registry so parallel tests do
// not collide on the default registerer.
func NewForTesting() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_requests_submitted_total",
			Help: "Total data-access requests accepted into the registry",
		}),
		RequestsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_requests_approved_total",
			Help: "Total requests approved by the owner",
		}),
		RequestsDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_requests_denied_total",
			Help: "Total requests denied by the owner",
		}),
		GrantsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_grants_revoked_total",
			Help: "Total grants revoked by the owner",
		}),
		ExpiriesObserved: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_grant_expiries_observed_total",
			Help: "Total grant expiries first observed at query time",
		}),
		GrantChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_grant_checks_total",
			Help: "Total isGranted evaluations by outcome",
		}, []string{"outcome"}),
		LedgerAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "medvault_ledger_appends_total",
			Help: "Total events appended to the access ledger",
		}),
	}
}
