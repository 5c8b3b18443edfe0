package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptIndex_Within(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	receipts := []FiscalReceipt{
		newReceipt("1", at.Add(25*time.Second), "100", PaymentMethodCash),
		newReceipt("1", at.Add(-10*time.Second), "100", PaymentMethodCash),
		newReceipt("1", at.Add(45*time.Second), "100", PaymentMethodCash), // outside
		newReceipt("2", at, "100", PaymentMethodCash),                     // other machine
	}
	idx := NewReceiptIndex(receipts)

	got := idx.Within("1", at.Add(-30*time.Second), at.Add(30*time.Second))
	require.Len(t, got, 2)
	// Ascending timestamp order regardless of input order.
	assert.Equal(t, receipts[1].ReceiptNumber, got[0].ReceiptNumber)
	assert.Equal(t, receipts[0].ReceiptNumber, got[1].ReceiptNumber)
}

func TestReceiptIndex_WindowBoundsInclusive(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	receipts := []FiscalReceipt{
		newReceipt("1", at.Add(-30*time.Second), "100", PaymentMethodCash),
		newReceipt("1", at.Add(30*time.Second), "100", PaymentMethodCash),
	}
	idx := NewReceiptIndex(receipts)

	got := idx.Within("1", at.Add(-30*time.Second), at.Add(30*time.Second))
	assert.Len(t, got, 2)
}

func TestReceiptIndex_UnknownMachine(t *testing.T) {
	idx := NewReceiptIndex(nil)
	assert.Empty(t, idx.Within("9", time.Now().Add(-time.Minute), time.Now()))
}

func TestSaleAmountIndex_ExactAmountKey(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sales := []Sale{
		newSale("1", at, "150", PaymentMethodCash),
		newSale("1", at, "151", PaymentMethodCash),
	}
	idx := NewSaleAmountIndex(sales)

	window := 30 * time.Second
	got := idx.Within(decimal.RequireFromString("150.00"), at.Add(-window), at.Add(window))
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(150)))

	// Amount lookup is exact; a near amount is a different key.
	assert.Empty(t, idx.Within(decimal.RequireFromString("150.50"), at.Add(-window), at.Add(window)))
}

func TestQRIndex_Within(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	transactions := []QRTransaction{
		newTransaction("click", at.Add(20*time.Second), "100", ""),
		newTransaction("payme", at.Add(-5*time.Second), "200", ""),
		newTransaction("uzum", at.Add(2*time.Minute), "300", ""),
	}
	idx := NewQRIndex(transactions)

	got := idx.Within(at.Add(-30*time.Second), at.Add(30*time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, "payme", got[0].Service)
	assert.Equal(t, "click", got[1].Service)
}
