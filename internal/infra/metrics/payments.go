package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		depositsTotal,
		depositRevenueTotal,
		callbacksTotal,
		activationsTotal,
		gatewayRequestSeconds,
	)
}

var (
	depositsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposits_total",
			Help: "Deposits by canonical status (accepted/pending/completed/failed).",
		},
		[]string{"status"},
	)

	depositRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_revenue_total",
			Help: "The total monetary value of completed deposits, labeled by currency.",
		},
		[]string{"currency"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbacks_total",
			Help: "Provider webhook deliveries by outcome (applied/duplicate/unknown/invalid).",
		},
		[]string{"outcome"},
	)

	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activations_total",
			Help: "Subscription activations by result (ok/failed/replayed).",
		},
		[]string{"result"},
	)

	gatewayRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_seconds",
			Help:    "Outbound provider call latency by provider and call.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"provider", "call"},
	)
)

func IncDeposit(status string) {
	depositsTotal.WithLabelValues(norm(status)).Inc()
}

func AddDepositRevenue(currency string, amount int64) {
	depositRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncCallback(outcome string) {
	callbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncActivation(result string) {
	activationsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveGatewayRequest(provider, call string, seconds float64) {
	gatewayRequestSeconds.WithLabelValues(norm(provider), norm(call)).Observe(seconds)
}
