package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		creditDeductionsTotal,
		rolloversTotal,
		consumeRetriesTotal,
	)
}

var (
	creditDeductionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_deductions_total",
			Help: "Deduction attempts by outcome (granted/insufficient/unlimited/replayed/error).",
		},
		[]string{"outcome"},
	)

	rolloversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_rollovers_total",
			Help: "Billing-period rollovers by trigger (deduction/sweep).",
		},
		[]string{"trigger"},
	)

	consumeRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_consume_retries_total",
			Help: "Deduction transactions retried after a concurrency conflict.",
		},
	)
)

func IncDeduction(outcome string) {
	creditDeductionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddRollovers(trigger string, count int) {
	rolloversTotal.WithLabelValues(norm(trigger)).Add(float64(count))
}

func IncConsumeRetry() { consumeRetriesTotal.Inc() }
