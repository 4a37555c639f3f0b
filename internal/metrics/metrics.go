package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring the webhook and recurrence flows
var (
	WebhooksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_processed_total",
			Help: "Total number of webhook callbacks processed, by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	CompletionTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_transactions_total",
			Help: "Total number of completion ledger transactions, by result",
		},
		[]string{"result"},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Duration of webhook processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecurrentEntriesScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recurrent_entries_scheduled_total",
			Help: "Total number of recurrent payment queue entries scheduled",
		},
	)

	RecurrentEntriesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recurrent_entries_processed_total",
			Help: "Total number of recurrent queue entries handled by the executor, by outcome",
		},
		[]string{"outcome"},
	)

	GatewayCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Duration of outbound gateway calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(WebhooksProcessedTotal)
	prometheus.MustRegister(CompletionTransactionsTotal)
	prometheus.MustRegister(WebhookProcessingDuration)
	prometheus.MustRegister(RecurrentEntriesScheduledTotal)
	prometheus.MustRegister(RecurrentEntriesProcessedTotal)
	prometheus.MustRegister(GatewayCallDuration)
}
