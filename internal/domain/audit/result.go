package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// MachineSummary aggregates one machine's activity over the audit period
type MachineSummary struct {
	TotalSales     int
	TotalAmount    decimal.Decimal
	Discrepancies  int
	PaymentMethods map[PaymentMethod]int
}

// PaymentSummary aggregates one payment method over the audit period
type PaymentSummary struct {
	Count     int
	Amount    decimal.Decimal
	Matched   int
	Unmatched int
}

// SuccessRate returns the matched share in percent, 0 for an empty category
func (p PaymentSummary) SuccessRate() float64 {
	if p.Count == 0 {
		return 0
	}
	return float64(p.Matched) / float64(p.Count) * 100
}

// ReconciliationResult is the full outcome of one reconciliation run.
//
// MatchedCount is a derived quantity: total sales minus the sale-anchored
// missing_receipt/missing_transaction findings. It is not independently
// verified against the match passes; consumers that care should assert the
// identity against Discrepancies.
type ReconciliationResult struct {
	PeriodStart       time.Time
	PeriodEnd         time.Time
	TotalSales        int
	TotalReceipts     int
	TotalTransactions int
	MatchedCount      int
	Discrepancies     []Discrepancy
	ByMachine         map[string]MachineSummary
	ByPayment         map[PaymentMethod]PaymentSummary
}

// CountByKind tallies discrepancies per kind
func (r *ReconciliationResult) CountByKind() map[DiscrepancyKind]int {
	counts := make(map[DiscrepancyKind]int)
	for _, d := range r.Discrepancies {
		counts[d.Kind]++
	}
	return counts
}
