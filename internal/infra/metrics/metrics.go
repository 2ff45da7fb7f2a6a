package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pdfscrapper"

// Metrics holds the billing counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	webhookEvents    *prometheus.CounterVec
	ledgerEntries    *prometheus.CounterVec
	ledgerCredits    *prometheus.CounterVec
	checkoutRequests *prometheus.CounterVec
	deletions        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Processor webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_ledger_entries_total",
			Help:      "Credit ledger entries appended, by reason.",
		}, []string{"reason"}),
		ledgerCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_ledger_credits_total",
			Help:      "Absolute credits moved through the ledger, by reason.",
		}, []string{"reason"}),
		checkoutRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_requests_total",
			Help:      "Checkout requests by requested plan and outcome.",
		}, []string{"plan", "outcome"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_deletions_total",
			Help:      "Subscription deletion events by verdict.",
		}, []string{"verdict"}),
	}
	reg.MustRegister(m.webhookEvents, m.ledgerEntries, m.ledgerCredits, m.checkoutRequests, m.deletions)
	return m
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) LedgerEntry(reason string, delta int64) {
	if m == nil {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.ledgerEntries.WithLabelValues(reason).Inc()
	m.ledgerCredits.WithLabelValues(reason).Add(float64(delta))
}

func (m *Metrics) Checkout(plan, outcome string) {
	if m == nil {
		return
	}
	m.checkoutRequests.WithLabelValues(plan, outcome).Inc()
}

func (m *Metrics) Deletion(verdict string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(verdict).Inc()
}
