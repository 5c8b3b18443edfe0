package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jamshiddins/vendbot-unified/internal/domain/shared/strategy"
)

// MatcherConfig holds the tolerances shared by all matching strategies
type MatcherConfig struct {
	// TimeTolerance is the symmetric window around a sale's timestamp in
	// which a counterpart record may fall.
	TimeTolerance time.Duration
	// AmountTolerance is the maximum absolute amount difference still
	// considered equal. Source systems round independently, so exact
	// equality is never used.
	AmountTolerance decimal.Decimal
	// MinorUnitThreshold and MinorUnitDivisor control normalization of QR
	// amounts reported in minor currency units: raw values above the
	// threshold are divided by the divisor before comparison. Applied by
	// magnitude rather than per service; the source systems do not document
	// which feeds use minor units.
	MinorUnitThreshold decimal.Decimal
	MinorUnitDivisor   decimal.Decimal
}

// DefaultMatcherConfig returns the production tolerances
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		TimeTolerance:      30 * time.Second,
		AmountTolerance:    decimal.NewFromInt(1),
		MinorUnitThreshold: decimal.NewFromInt(10000),
		MinorUnitDivisor:   decimal.NewFromInt(100),
	}
}

// AmountsClose reports whether two amounts are equal within tolerance
func (c MatcherConfig) AmountsClose(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(c.AmountTolerance)
}

// NormalizeAmount converts a raw QR amount to major currency units when its
// magnitude makes minor units the only plausible reading.
func (c MatcherConfig) NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(c.MinorUnitThreshold) {
		return amount.Div(c.MinorUnitDivisor)
	}
	return amount
}

// Window returns the [from, to] tolerance window around a timestamp
func (c MatcherConfig) Window(t time.Time) (time.Time, time.Time) {
	return t.Add(-c.TimeTolerance), t.Add(c.TimeTolerance)
}

// Match is the counterpart record found for a sale; exactly one field is set
type Match struct {
	Receipt     *FiscalReceipt
	Transaction *QRTransaction
}

// MatchStrategy finds the counterpart record for a sale of the payment
// categories it serves. Adding a payment method means adding one strategy and
// registering it, not editing a branching chain.
type MatchStrategy interface {
	strategy.Strategy
	// PaymentMethods lists the sale categories this strategy serves
	PaymentMethods() []PaymentMethod
	// FindMatch returns the first counterpart within tolerance, in
	// ascending timestamp order, or nil when none exists.
	FindMatch(sale *Sale) *Match
	// MissingKind is the discrepancy kind raised when FindMatch returns nil
	MissingKind() DiscrepancyKind
}

// ReceiptMatchStrategy matches cash and card sales against fiscal receipts
// from the same machine.
type ReceiptMatchStrategy struct {
	strategy.BaseStrategy
	cfg      MatcherConfig
	receipts *ReceiptIndex
}

// NewReceiptMatchStrategy creates a receipt matcher over a prebuilt index
func NewReceiptMatchStrategy(cfg MatcherConfig, receipts *ReceiptIndex) *ReceiptMatchStrategy {
	return &ReceiptMatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fiscal_receipt_match",
			strategy.StrategyTypeMatching,
			"Matches cash/card sales to same-machine fiscal receipts within time and amount tolerance",
		),
		cfg:      cfg,
		receipts: receipts,
	}
}

// PaymentMethods returns the categories served by this strategy
func (s *ReceiptMatchStrategy) PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCash, PaymentMethodCard}
}

// MissingKind returns the kind raised for an unmatched fiscal sale
func (s *ReceiptMatchStrategy) MissingKind() DiscrepancyKind {
	return DiscrepancyMissingReceipt
}

// FindMatch returns the first same-machine receipt within the tolerance
// window whose amount and payment category line up with the sale.
func (s *ReceiptMatchStrategy) FindMatch(sale *Sale) *Match {
	from, to := s.cfg.Window(sale.Timestamp)
	for _, receipt := range s.receipts.Within(sale.MachineID, from, to) {
		if !s.cfg.AmountsClose(receipt.Amount, sale.Amount) {
			continue
		}
		if !receiptMethodCompatible(sale.PaymentMethod, receipt.PaymentMethod) {
			continue
		}
		return &Match{Receipt: receipt}
	}
	return nil
}

// receiptMethodCompatible checks a sale category against a receipt category.
// Registers do not always distinguish card sub-types, so a card sale also
// accepts a receipt classified unknown.
func receiptMethodCompatible(sale, receipt PaymentMethod) bool {
	if sale == receipt {
		return true
	}
	return sale == PaymentMethodCard && receipt == PaymentMethodUnknown
}

// QRMatchStrategy matches QR-category sales against payment-service
// transactions.
type QRMatchStrategy struct {
	strategy.BaseStrategy
	cfg          MatcherConfig
	transactions *QRIndex
}

// NewQRMatchStrategy creates a QR matcher over a prebuilt index
func NewQRMatchStrategy(cfg MatcherConfig, transactions *QRIndex) *QRMatchStrategy {
	return &QRMatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"qr_transaction_match",
			strategy.StrategyTypeMatching,
			"Matches QR sales to service transactions within time and amount tolerance",
		),
		cfg:          cfg,
		transactions: transactions,
	}
}

// PaymentMethods returns the categories served by this strategy
func (s *QRMatchStrategy) PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodQRClick, PaymentMethodQRPayme, PaymentMethodQRUzum}
}

// MissingKind returns the kind raised for an unmatched QR sale
func (s *QRMatchStrategy) MissingKind() DiscrepancyKind {
	return DiscrepancyMissingTransaction
}

// FindMatch returns the first transaction of the sale's service within the
// tolerance window whose normalized amount is close and whose machine id is
// either absent or equal to the sale's.
func (s *QRMatchStrategy) FindMatch(sale *Sale) *Match {
	service := sale.PaymentMethod.QRService()
	if service == "" {
		return nil
	}
	from, to := s.cfg.Window(sale.Timestamp)
	for _, tx := range s.transactions.Within(from, to) {
		if tx.Service != service {
			continue
		}
		if !s.cfg.AmountsClose(s.cfg.NormalizeAmount(tx.Amount), sale.Amount) {
			continue
		}
		if tx.MachineID != "" && tx.MachineID != sale.MachineID {
			continue
		}
		return &Match{Transaction: tx}
	}
	return nil
}

// MatchStrategyRegistry dispatches a sale's payment category to its matching
// strategy.
type MatchStrategyRegistry struct {
	byMethod map[PaymentMethod]MatchStrategy
}

// NewMatchStrategyRegistry registers each strategy under every category it serves
func NewMatchStrategyRegistry(strategies ...MatchStrategy) *MatchStrategyRegistry {
	r := &MatchStrategyRegistry{byMethod: make(map[PaymentMethod]MatchStrategy)}
	for _, s := range strategies {
		for _, method := range s.PaymentMethods() {
			r.byMethod[method] = s
		}
	}
	return r
}

// For returns the strategy serving the given payment category
func (r *MatchStrategyRegistry) For(method PaymentMethod) (MatchStrategy, bool) {
	s, ok := r.byMethod[method]
	return s, ok
}
