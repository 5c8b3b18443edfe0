package audit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one vending-machine sale as recorded by the telemetry export.
// Records are created by a loader and held immutable for the duration of one
// audit run.
type Sale struct {
	ID            string
	MachineID     string
	Timestamp     time.Time
	ProductCode   string
	ProductName   string
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Quantity      int
}

// DuplicateKey derives the identity used for duplicate detection. Two sales
// with the same machine, timestamp, amount and product code describe the same
// physical vend; there is no synthetic key for this.
func (s Sale) DuplicateKey() string {
	return fmt.Sprintf("%s|%d|%s|%s",
		s.MachineID, s.Timestamp.UnixNano(), s.Amount.StringFixed(2), s.ProductCode)
}
