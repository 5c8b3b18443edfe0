package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	periodStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, 6, 1, 23, 59, 59, 999999000, time.UTC)
	baseTime    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newSale(machineID string, at time.Time, amount string, method PaymentMethod) Sale {
	return Sale{
		ID:            "SALE_" + machineID + "_" + at.Format("150405"),
		MachineID:     machineID,
		Timestamp:     at,
		ProductCode:   "P001",
		ProductName:   "Espresso",
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: method,
		Quantity:      1,
	}
}

func newReceipt(machineID string, at time.Time, amount string, method PaymentMethod) FiscalReceipt {
	return FiscalReceipt{
		ReceiptNumber: "R-" + at.Format("150405"),
		MachineID:     machineID,
		Timestamp:     at,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: method,
	}
}

func newTransaction(service string, at time.Time, amount string, machineID string) QRTransaction {
	return QRTransaction{
		TransactionID: service + "-" + at.Format("150405"),
		Service:       service,
		Timestamp:     at,
		Amount:        decimal.RequireFromString(amount),
		MachineID:     machineID,
		Status:        "success",
	}
}

func findByKind(discrepancies []Discrepancy, kind DiscrepancyKind) []Discrepancy {
	var out []Discrepancy
	for _, d := range discrepancies {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func TestReconcileAll_CleanCashMatch(t *testing.T) {
	svc := NewReconciliationService()

	sales := []Sale{newSale("1", baseTime, "150", PaymentMethodCash)}
	receipts := []FiscalReceipt{newReceipt("1", baseTime.Add(10*time.Second), "150", PaymentMethodCash)}

	result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, 1, result.TotalSales)
	assert.Equal(t, 1, result.TotalReceipts)
}

func TestReconcileAll_AmountToleranceBoundary(t *testing.T) {
	t.Run("difference of exactly the tolerance matches", func(t *testing.T) {
		svc := NewReconciliationService()
		sales := []Sale{newSale("1", baseTime, "150.00", PaymentMethodCash)}
		receipts := []FiscalReceipt{newReceipt("1", baseTime, "151.00", PaymentMethodCash)}

		result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

		assert.Empty(t, findByKind(result.Discrepancies, DiscrepancyMissingReceipt))
		assert.Equal(t, 1, result.MatchedCount)
	})

	t.Run("difference just past the tolerance does not match", func(t *testing.T) {
		svc := NewReconciliationService()
		sales := []Sale{newSale("1", baseTime, "150.00", PaymentMethodCash)}
		receipts := []FiscalReceipt{newReceipt("1", baseTime, "151.01", PaymentMethodCash)}

		result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

		missing := findByKind(result.Discrepancies, DiscrepancyMissingReceipt)
		require.NotEmpty(t, missing)
		assert.Equal(t, 0, result.MatchedCount)

		var saleAnchored bool
		for _, d := range missing {
			if d.AnchoredOnSale() {
				saleAnchored = true
				assert.Equal(t, SeverityHigh, d.Severity)
			}
		}
		assert.True(t, saleAnchored)
	})
}

func TestReconcileAll_TimeToleranceWindow(t *testing.T) {
	t.Run("receipt inside the window matches", func(t *testing.T) {
		svc := NewReconciliationService()
		sales := []Sale{newSale("1", baseTime, "150", PaymentMethodCash)}
		receipts := []FiscalReceipt{newReceipt("1", baseTime.Add(30*time.Second), "150", PaymentMethodCash)}

		result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)
		assert.Empty(t, result.Discrepancies)
	})

	t.Run("receipt outside the window does not match", func(t *testing.T) {
		svc := NewReconciliationService()
		sales := []Sale{newSale("1", baseTime, "150", PaymentMethodCash)}
		receipts := []FiscalReceipt{newReceipt("1", baseTime.Add(31*time.Second), "150", PaymentMethodCash)}

		result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)
		assert.NotEmpty(t, findByKind(result.Discrepancies, DiscrepancyMissingReceipt))
	})
}

func TestReconcileAll_CardAcceptsUnknownReceiptCategory(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "200", PaymentMethodCard)}
	receipts := []FiscalReceipt{newReceipt("1", baseTime.Add(5*time.Second), "200", PaymentMethodUnknown)}

	result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)
	assert.Empty(t, findByKind(result.Discrepancies, DiscrepancyMissingReceipt))
}

func TestReconcileAll_CashDoesNotAcceptUnknownReceiptCategory(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "200", PaymentMethodCash)}
	receipts := []FiscalReceipt{newReceipt("1", baseTime.Add(5*time.Second), "200", PaymentMethodUnknown)}

	result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

	missing := findByKind(result.Discrepancies, DiscrepancyMissingReceipt)
	var saleAnchored int
	for _, d := range missing {
		if d.AnchoredOnSale() {
			saleAnchored++
		}
	}
	assert.Equal(t, 1, saleAnchored)
}

func TestReconcileAll_QRMinorUnitConversion(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "250", PaymentMethodQRPayme)}
	transactions := []QRTransaction{newTransaction("payme", baseTime.Add(15*time.Second), "25000", "")}

	result := svc.ReconcileAll(sales, nil, transactions, periodStart, periodEnd)

	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, 1, result.MatchedCount)
}

func TestReconcileAll_QRMachineMismatchRejected(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "250", PaymentMethodQRClick)}
	transactions := []QRTransaction{newTransaction("click", baseTime, "250", "2")}

	result := svc.ReconcileAll(sales, nil, transactions, periodStart, periodEnd)

	assert.NotEmpty(t, findByKind(result.Discrepancies, DiscrepancyMissingTransaction))
}

func TestReconcileAll_QRServiceMustMatch(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "250", PaymentMethodQRUzum)}
	transactions := []QRTransaction{newTransaction("payme", baseTime, "250", "")}

	result := svc.ReconcileAll(sales, nil, transactions, periodStart, periodEnd)

	missing := findByKind(result.Discrepancies, DiscrepancyMissingTransaction)
	// One anchored on the sale, one on the orphan transaction.
	assert.Len(t, missing, 2)
}

func TestReconcileAll_OrphanTransaction(t *testing.T) {
	svc := NewReconciliationService()
	transactions := []QRTransaction{newTransaction("click", baseTime, "300", "")}

	result := svc.ReconcileAll(nil, nil, transactions, periodStart, periodEnd)

	missing := findByKind(result.Discrepancies, DiscrepancyMissingTransaction)
	require.Len(t, missing, 1)
	assert.NotNil(t, missing[0].Transaction)
	assert.Nil(t, missing[0].Sale)
	assert.Equal(t, "UNKNOWN", missing[0].MachineID)
	assert.Equal(t, SeverityMedium, missing[0].Severity)
}

func TestReconcileAll_OrphanReceipt(t *testing.T) {
	svc := NewReconciliationService()
	receipts := []FiscalReceipt{newReceipt("3", baseTime, "175", PaymentMethodCash)}

	result := svc.ReconcileAll(nil, receipts, nil, periodStart, periodEnd)

	missing := findByKind(result.Discrepancies, DiscrepancyMissingReceipt)
	require.Len(t, missing, 1)
	assert.NotNil(t, missing[0].Receipt)
	assert.Nil(t, missing[0].Sale)
	assert.Equal(t, SeverityMedium, missing[0].Severity)
}

func TestReconcileAll_TestSaleInvariant(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "150", PaymentMethodTest)}

	result := svc.ReconcileAll(sales, nil, nil, periodStart, periodEnd)

	require.Len(t, result.Discrepancies, 1)
	d := result.Discrepancies[0]
	assert.Equal(t, DiscrepancyTestSale, d.Kind)
	assert.Equal(t, SeverityLow, d.Severity)
	require.NotNil(t, d.Sale)
	assert.Equal(t, PaymentMethodTest, d.Sale.PaymentMethod)
	// A test sale never counts as unmatched.
	assert.Equal(t, 1, result.MatchedCount)
}

func TestReconcileAll_VIPSaleSkippedSilently(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "150", PaymentMethodVIP)}

	result := svc.ReconcileAll(sales, nil, nil, periodStart, periodEnd)

	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, 1, result.MatchedCount)
}

func TestReconcileAll_UnknownPaymentMethod(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "150", PaymentMethod("crypto"))}

	result := svc.ReconcileAll(sales, nil, nil, periodStart, periodEnd)

	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, DiscrepancyUnknownPayment, result.Discrepancies[0].Kind)
	assert.Equal(t, SeverityMedium, result.Discrepancies[0].Severity)
}

func TestReconcileAll_DuplicateInvariant(t *testing.T) {
	svc := NewReconciliationService()
	// VIP sales keep the duplicate scan free of matching noise.
	first := newSale("1", baseTime, "150", PaymentMethodVIP)
	second := newSale("1", baseTime, "150", PaymentMethodVIP)
	sales := []Sale{first, second}

	result := svc.ReconcileAll(sales, nil, nil, periodStart, periodEnd)

	duplicates := findByKind(result.Discrepancies, DiscrepancyDuplicateSale)
	require.Len(t, duplicates, 1)
	assert.Equal(t, SeverityHigh, duplicates[0].Severity)
	// Anchored on the second occurrence in input order.
	assert.Same(t, &sales[1], duplicates[0].Sale)
}

func TestReconcileAll_MatchedCountIdentity(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{
		newSale("1", baseTime, "150", PaymentMethodCash),
		newSale("1", baseTime.Add(5*time.Minute), "200", PaymentMethodCard),
		newSale("2", baseTime.Add(10*time.Minute), "250", PaymentMethodQRPayme),
		newSale("2", baseTime.Add(15*time.Minute), "100", PaymentMethodTest),
		newSale("2", baseTime.Add(20*time.Minute), "300", PaymentMethodVIP),
	}
	receipts := []FiscalReceipt{
		newReceipt("1", baseTime.Add(3*time.Second), "150", PaymentMethodCash),
	}

	result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

	saleAnchoredMissing := 0
	for _, d := range result.Discrepancies {
		if (d.Kind == DiscrepancyMissingReceipt || d.Kind == DiscrepancyMissingTransaction) && d.AnchoredOnSale() {
			saleAnchoredMissing++
		}
	}
	assert.Equal(t, result.TotalSales-saleAnchoredMissing, result.MatchedCount)
	assert.Equal(t, 3, result.MatchedCount)
}

func TestReconcileAll_Determinism(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{
		newSale("1", baseTime, "150", PaymentMethodCash),
		newSale("2", baseTime.Add(time.Minute), "250", PaymentMethodQRClick),
		newSale("2", baseTime.Add(2*time.Minute), "100", PaymentMethodTest),
	}
	receipts := []FiscalReceipt{
		newReceipt("1", baseTime.Add(40*time.Second), "150", PaymentMethodCash),
		newReceipt("3", baseTime, "500", PaymentMethodCard),
	}
	transactions := []QRTransaction{
		newTransaction("click", baseTime.Add(time.Minute+10*time.Second), "250", ""),
		newTransaction("uzum", baseTime, "999", ""),
	}

	first := svc.ReconcileAll(sales, receipts, transactions, periodStart, periodEnd)
	second := svc.ReconcileAll(sales, receipts, transactions, periodStart, periodEnd)

	assert.Equal(t, first, second)
}

func TestReconcileAll_Summaries(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{
		newSale("1", baseTime, "150", PaymentMethodCash),
		newSale("1", baseTime.Add(time.Minute), "200", PaymentMethodCard),
		newSale("2", baseTime.Add(2*time.Minute), "250", PaymentMethodQRPayme),
	}
	receipts := []FiscalReceipt{
		newReceipt("1", baseTime.Add(5*time.Second), "150", PaymentMethodCash),
	}

	result := svc.ReconcileAll(sales, receipts, nil, periodStart, periodEnd)

	machine1 := result.ByMachine["1"]
	assert.Equal(t, 2, machine1.TotalSales)
	assert.True(t, machine1.TotalAmount.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, 1, machine1.PaymentMethods[PaymentMethodCash])
	assert.Equal(t, 1, machine1.PaymentMethods[PaymentMethodCard])
	assert.Equal(t, 1, machine1.Discrepancies) // card sale has no receipt

	cash := result.ByPayment[PaymentMethodCash]
	assert.Equal(t, 1, cash.Count)
	assert.Equal(t, 1, cash.Matched)
	assert.Equal(t, 0, cash.Unmatched)
	assert.InDelta(t, 100.0, cash.SuccessRate(), 0.001)

	card := result.ByPayment[PaymentMethodCard]
	assert.Equal(t, 1, card.Unmatched)
	assert.InDelta(t, 0.0, card.SuccessRate(), 0.001)
}

func TestReconcileAll_FirstMatchInAscendingTimestampOrder(t *testing.T) {
	svc := NewReconciliationService()
	sales := []Sale{newSale("1", baseTime, "150", PaymentMethodCash)}
	early := newReceipt("1", baseTime.Add(-20*time.Second), "150", PaymentMethodCash)
	late := newReceipt("1", baseTime.Add(20*time.Second), "150", PaymentMethodCash)
	// Input order is late-first; the matcher must still prefer the earlier one.
	receipts := []FiscalReceipt{late, early}

	idx := NewReceiptIndex(receipts)
	strategy := NewReceiptMatchStrategy(svc.cfg, idx)
	match := strategy.FindMatch(&sales[0])

	require.NotNil(t, match)
	assert.Equal(t, early.ReceiptNumber, match.Receipt.ReceiptNumber)
}
