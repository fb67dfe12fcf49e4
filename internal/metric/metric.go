package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CartMutations counts add/remove/clear operations by kind.
	CartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopbot",
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Number of cart mutations processed, by operation.",
	}, []string{"operation"})

	// ReapedCarts counts carts deleted by the background reaper.
	ReapedCarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopbot",
		Subsystem: "cart",
		Name:      "reaped_total",
		Help:      "Number of expired carts removed by the reaper.",
	})

	// StaleWrites counts optimistic-concurrency conflicts on cart saves.
	StaleWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopbot",
		Subsystem: "cart",
		Name:      "stale_writes_total",
		Help:      "Number of cart saves rejected as stale.",
	})

	// ReservationConflicts counts reservations rejected for lack of stock.
	ReservationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopbot",
		Subsystem: "catalog",
		Name:      "reservation_conflicts_total",
		Help:      "Number of stock reservations rejected as insufficient.",
	})
)
