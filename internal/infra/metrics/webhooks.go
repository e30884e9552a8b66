package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal, rateLimitedTotal)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_webhook_events_total",
			Help: "Billing-provider webhook deliveries by result (applied/stale/rejected/error).",
		},
		[]string{"result"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consume_rate_limited_total",
			Help: "POST /api/credits requests refused by the per-user rate limiter.",
		},
	)
)

func IncWebhookEvent(result string) {
	webhookEventsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimited() { rateLimitedTotal.Inc() }
