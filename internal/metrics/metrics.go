// Package metrics exposes Prometheus instrumentation for the gate engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_gate_decisions_total",
		Help: "Finalized gate decisions by direction and outcome.",
	}, []string{"direction", "outcome"})

	noDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_gate_no_detection_total",
		Help: "Capture sessions that ended with zero candidates.",
	})

	fallbackVotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_gate_consensus_fallback_total",
		Help: "Consensus decisions that fell back to a raw majority of invalid reads.",
	})

	reservationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_gate_reservation_conflicts_total",
		Help: "Atomic slot reservations lost to a concurrent allocator.",
	})
)

// GateDecision counts one finalized decision.
func GateDecision(direction, outcome string) {
	gateDecisions.WithLabelValues(direction, outcome).Inc()
}

// NoDetection counts a capture session with no candidates.
func NoDetection() {
	noDetections.Inc()
}

// FallbackVote counts a consensus decision without a valid majority.
func FallbackVote() {
	fallbackVotes.Inc()
}

// ReservationConflict counts a lost reservation race.
func ReservationConflict() {
	reservationConflicts.Inc()
}
