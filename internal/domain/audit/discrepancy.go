package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscrepancyKind classifies a reconciliation or consumption finding
type DiscrepancyKind string

const (
	DiscrepancyMissingReceipt     DiscrepancyKind = "missing_receipt"
	DiscrepancyMissingTransaction DiscrepancyKind = "missing_transaction"
	DiscrepancyDuplicateSale      DiscrepancyKind = "duplicate_sale"
	DiscrepancyAmountMismatch     DiscrepancyKind = "amount_mismatch"
	DiscrepancyTimeMismatch       DiscrepancyKind = "time_mismatch"
	DiscrepancyTestSale           DiscrepancyKind = "test_sale"
	DiscrepancyExcessConsumption  DiscrepancyKind = "excess_consumption"
	DiscrepancyUnknownPayment     DiscrepancyKind = "unknown_payment"
)

// String returns the string representation
func (k DiscrepancyKind) String() string {
	return string(k)
}

// IsValid checks if the kind is known
func (k DiscrepancyKind) IsValid() bool {
	switch k {
	case DiscrepancyMissingReceipt, DiscrepancyMissingTransaction,
		DiscrepancyDuplicateSale, DiscrepancyAmountMismatch,
		DiscrepancyTimeMismatch, DiscrepancyTestSale,
		DiscrepancyExcessConsumption, DiscrepancyUnknownPayment:
		return true
	}
	return false
}

// AllDiscrepancyKinds returns all known discrepancy kinds
func AllDiscrepancyKinds() []DiscrepancyKind {
	return []DiscrepancyKind{
		DiscrepancyMissingReceipt,
		DiscrepancyMissingTransaction,
		DiscrepancyDuplicateSale,
		DiscrepancyAmountMismatch,
		DiscrepancyTimeMismatch,
		DiscrepancyTestSale,
		DiscrepancyExcessConsumption,
		DiscrepancyUnknownPayment,
	}
}

// Severity grades how actionable a discrepancy is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is known
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank orders severities from low (0) to critical (3)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Discrepancy is one flagged finding. It always carries enough back-reference
// (sale, receipt or transaction) to reproduce why it was raised.
type Discrepancy struct {
	ID          uuid.UUID
	Kind        DiscrepancyKind
	MachineID   string
	Timestamp   time.Time
	Description string

	// Back-references to the records involved; at least one of these is set
	// for every reconciliation finding. Consumption findings reference none
	// and identify the ingredient in the description.
	Sale        *Sale
	Receipt     *FiscalReceipt
	Transaction *QRTransaction

	// AmountDelta is the signed amount difference when one is meaningful,
	// e.g. actual minus theoretical consumption.
	AmountDelta *decimal.Decimal

	Severity Severity
}

// AnchoredOnSale reports whether the finding is anchored on a sale record
func (d Discrepancy) AnchoredOnSale() bool {
	return d.Sale != nil
}
