// internal/service/fulfillment/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_reservations_reserved_total",
		Help: "Number of reservations created by reserveAll.",
	})
	reservationsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_reservations_confirmed_total",
		Help: "Number of reservations finalized by confirmAll.",
	})
	reservationsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_reservations_cancelled_total",
		Help: "Number of reservations released by cancelAll.",
	})
	reservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_reservations_expired_total",
		Help: "Number of reservations reclaimed by the expiration sweeper.",
	})
	versionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_stock_version_conflicts_total",
		Help: "Number of optimistic lock conflicts observed during reserveAll.",
	})
	stockDecrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_stock_decrement_failures_total",
		Help: "Number of fatal stock decrement failures during confirmAll.",
	})
)
