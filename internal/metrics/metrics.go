package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gradebook"

// Outcome labels shared by the login and grade update counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	AccountsCreated prometheus.Counter
	RoleChanges     *prometheus.CounterVec
	GradeUpdates    *prometheus.CounterVec
}

// New registers the service counters with reg. A nil reg leaves them
// unregistered, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "Student accounts registered.",
		}),
		RoleChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_changes_total",
			Help:      "Role changes applied by admins, by new role.",
		}, []string{"role"}),
		GradeUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grade_updates_total",
			Help:      "Grade update requests by outcome.",
		}, []string{"outcome"}),
	}
}
