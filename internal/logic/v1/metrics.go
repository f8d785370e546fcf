package v1

import (
	"errors"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leave_requests_total",
			Help: "Leave request operations by outcome",
		},
		[]string{"op", "result"},
	)

	gateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_gate_decisions_total",
			Help: "Route decisions made by the onboarding gate",
		},
		[]string{"state", "decision"},
	)

	degradedProfileReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_read_degraded_total",
			Help: "Gate evaluations that fell back to an empty profile after a read failure",
		},
	)

	activeWatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_watches",
			Help: "Snapshot watches currently open",
		},
	)
)

// resultLabel maps an operation error to a low-cardinality metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidationFailed):
		return "invalid"
	case errors.Is(err, domain.ErrRequestNotFound), errors.Is(err, domain.ErrProfileNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrOnboardingIncomplete), errors.Is(err, domain.ErrRoleNotPermitted):
		return "denied"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
