package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		membershipOperationsTotal,
		membershipsExpiredTotal,
		ordersExpiredTotal,
	)
}

var (
	membershipOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_operations_total",
			Help: "Applied membership operations by kind.",
		},
		[]string{"operation"}, // 'new', 'extend', 'upgrade', 'downgrade'
	)

	membershipsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_expired_total",
			Help: "Total number of memberships marked expired by the sweep worker.",
		},
	)

	ordersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Total number of pending orders expired by the sweep worker.",
		},
	)
)

func IncMembershipOperation(op string) {
	membershipOperationsTotal.WithLabelValues(norm(op)).Inc()
}

func IncMembershipsExpired(count int) {
	membershipsExpiredTotal.Add(float64(count))
}

func IncOrdersExpired(count int) {
	ordersExpiredTotal.Add(float64(count))
}
