package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerMetrics defines the counters recorded by the ledger services.
type LedgerMetrics interface {
	// IncExportDecision counts export checks by outcome: allowed_credit,
	// allowed_subscription, denied_no_credits, denied_not_found, error.
	IncExportDecision(outcome string)
	// IncProvisioning counts provisioning events by type and outcome: applied,
	// duplicate, orphan, error.
	IncProvisioning(eventType, outcome string)
	// IncSideEffectFailure counts best-effort follow-ups that failed: claims,
	// cache, publish, audit, mail.
	IncSideEffectFailure(kind string)
}

type ledgerMetrics struct {
	exportDecisions    *prometheus.CounterVec
	provisioningEvents *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on registry.
func NewLedgerMetrics(registry *prometheus.Registry) LedgerMetrics {
	factory := promauto.With(registry)
	return &ledgerMetrics{
		exportDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_export_decisions_total",
				Help: "Export authorization decisions by outcome",
			},
			[]string{"outcome"},
		),
		provisioningEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_provisioning_events_total",
				Help: "Provisioning events handled by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		sideEffectFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_side_effect_failures_total",
				Help: "Best-effort follow-ups that failed after a committed ledger write",
			},
			[]string{"kind"},
		),
	}
}

func (m *ledgerMetrics) IncExportDecision(outcome string) {
	m.exportDecisions.WithLabelValues(outcome).Inc()
}

func (m *ledgerMetrics) IncProvisioning(eventType, outcome string) {
	m.provisioningEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *ledgerMetrics) IncSideEffectFailure(kind string) {
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

// Nop discards all observations.
type Nop struct{}

func (Nop) IncExportDecision(string)       {}
func (Nop) IncProvisioning(string, string) {}
func (Nop) IncSideEffectFailure(string)    {}
