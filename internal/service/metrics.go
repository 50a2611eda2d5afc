package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "careerfair_reservations_created_total",
			Help: "Reservations persisted in the requested state",
		},
	)
	reservationConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerfair_reservation_conflicts_total",
			Help: "Reservation requests rejected because of an overlapping active reservation",
		},
		[]string{"requested_by"},
	)
	reservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerfair_reservation_transitions_total",
			Help: "Reservation status changes by edge and outcome",
		},
		[]string{"from", "to", "outcome"},
	)
	tableAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerfair_table_assignments_total",
			Help: "Table assignment attempts by session and outcome",
		},
		[]string{"session", "outcome"},
	)
)
