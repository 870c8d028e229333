// Package metrics holds the Prometheus collectors the Sweeper
// publishes against. All collectors are registered on the
// default registry at package init, matching how a single-binary
// service exposes /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweeperCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_core_sweeper_cycles_total",
		Help: "Number of expiry sweep cycles run.",
	})

	SweeperReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_core_sweeper_reservations_expired_total",
		Help: "Number of reservations transitioned to expired by the sweeper.",
	})

	SweeperUnitsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_core_sweeper_units_released_total",
		Help: "Number of reserved units released back to the free pool by the sweeper.",
	})

	SweeperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_core_sweeper_errors_total",
		Help: "Number of per-reservation errors encountered during a sweep cycle.",
	})

	SweeperCycleSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_core_sweeper_cycle_skipped_total",
		Help: "Number of sweep ticks skipped because the previous cycle was still running.",
	})
)
