package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptItem is one itemized line on a fiscal receipt
type ReceiptItem struct {
	Name   string
	Amount decimal.Decimal
}

// FiscalReceipt is a register-issued proof of a cash or card sale. Registers
// do not always distinguish card sub-types, so PaymentMethod may also be
// unknown.
type FiscalReceipt struct {
	ReceiptNumber string
	MachineID     string
	Timestamp     time.Time
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Items         []ReceiptItem
}
