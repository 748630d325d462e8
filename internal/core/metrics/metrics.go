package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "cryptovault"

var (
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Transactions by type and resulting status.",
	}, []string{"type", "status"})

	swapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swaps_total",
		Help:      "Completed swaps by currency pair.",
	}, []string{"from", "to"})

	swapVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swap_volume_usd_total",
		Help:      "USD value moved by swaps, by source currency.",
	}, []string{"from"})

	ledgerAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_adjustments_total",
		Help:      "Committed ledger adjustments by currency and direction.",
	}, []string{"currency", "direction"})

	rejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_operations_total",
		Help:      "Operations refused by a domain rule.",
	}, []string{"operation", "reason"})
)

func ObserveTransaction(txType, status string) {
	transactionsTotal.WithLabelValues(txType, status).Inc()
}

func ObserveSwap(from, to string, amount decimal.Decimal) {
	swapsTotal.WithLabelValues(from, to).Inc()
	swapVolume.WithLabelValues(from).Add(amount.InexactFloat64())
}

func ObserveAdjustment(currency string, delta decimal.Decimal) {
	direction := "credit"
	if delta.IsNegative() {
		direction = "debit"
	}
	ledgerAdjustments.WithLabelValues(currency, direction).Inc()
}

func ObserveRejection(operation, reason string) {
	rejectedOperations.WithLabelValues(operation, reason).Inc()
}
