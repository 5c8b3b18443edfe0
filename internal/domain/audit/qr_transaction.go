package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// QRTransaction is a payment-service record of a scan-to-pay sale.
//
// MachineID is frequently empty: most services only carry an opaque merchant
// reference, from which the loader extracts a machine id when it can. Amount
// may be reported in minor currency units depending on the service; the
// engine normalizes before comparing.
type QRTransaction struct {
	TransactionID string
	Service       string // click, payme, uzum
	Timestamp     time.Time
	Amount        decimal.Decimal
	MachineID     string // empty when the service did not identify the machine
	Status        string
}
