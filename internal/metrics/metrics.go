package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeeSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credbot_fee_submissions_total",
		Help: "Access fee submissions by resulting status.",
	}, []string{"status"})

	ReputationGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credbot_reputation_points_granted_total",
		Help: "Reputation points granted.",
	})

	LoanRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credbot_loan_requests_total",
		Help: "Loan requests by tier.",
	}, []string{"tier"})

	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credbot_loan_transitions_total",
		Help: "Loan status transitions by target status.",
	}, []string{"status"})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credbot_sweep_runs_total",
		Help: "Overdue sweep runs by outcome.",
	}, []string{"outcome"})

	CommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credbot_command_failures_total",
		Help: "Failed bot commands by error kind.",
	}, []string{"kind"})
)
