package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xMiden/MultiSig/pkg/multisig"
)

// Metrics used in monitoring service.
var (
	accountsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of multisig accounts created",
			Name:      "accounts_created_total",
			Namespace: "multisig",
		},
	)

	txsProposed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of multisig transactions proposed",
			Name:      "txs_proposed_total",
			Namespace: "multisig",
		},
	)

	txsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of multisig transactions driven to a terminal status",
			Name:      "txs_processed_total",
			Namespace: "multisig",
		},
		[]string{"status"},
	)

	signaturesAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of approver signatures recorded",
			Name:      "signatures_accepted_total",
			Namespace: "multisig",
		},
	)
)

func init() {
	prometheus.MustRegister(
		accountsCreated,
		txsProposed,
		txsProcessed,
		signaturesAccepted,
	)
}

func accountsCreatedInc() {
	accountsCreated.Inc()
}

func txsProposedInc() {
	txsProposed.Inc()
}

func txsProcessedInc(status multisig.Status) {
	txsProcessed.WithLabelValues(status.String()).Inc()
}

func signaturesAcceptedInc() {
	signaturesAccepted.Inc()
}
