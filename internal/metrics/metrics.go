package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artverse_generations_total",
			Help: "AI generations by kind and outcome",
		},
		[]string{"kind", "outcome"}, // image|video , ok|failed|insufficient
	)

	CreditsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artverse_credits_moved_total",
			Help: "Absolute credits moved through the ledger by transaction type",
		},
		[]string{"type"}, // purchase|usage|bonus|refund
	)

	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artverse_payments_total",
			Help: "Stripe payment flows by kind and outcome",
		},
		[]string{"kind", "outcome"}, // credits|tip|subscription|withdrawal , created|completed|failed
	)

	CaptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artverse_captions_total",
			Help: "AI caption requests by outcome",
		},
		[]string{"outcome"}, // ok|failed|limited
	)

	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artverse_outbox_events_total",
			Help: "Outbox rows handled by the relay",
		},
		[]string{"outcome"}, // published|failed
	)

	AnalyticsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "artverse_analytics_events_ingested_total",
			Help: "Events written to ClickHouse by the analytics worker",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once per process.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			GenerationsTotal,
			CreditsMoved,
			PaymentsTotal,
			CaptionsTotal,
			OutboxPublished,
			AnalyticsIngested,
		)
	})
}
