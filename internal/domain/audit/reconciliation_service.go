package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconciliationService correlates sales against fiscal receipts and QR
// transactions for one audit period. It is a pure batch computation: no
// shared state across calls, no I/O, and identical inputs always produce an
// identical result. An unmatched record is data (a Discrepancy), never an
// error; the service has no failure path for content.
type ReconciliationService struct {
	cfg MatcherConfig
	log *zap.Logger
}

// ReconciliationServiceOption is a functional option for configuring ReconciliationService
type ReconciliationServiceOption func(*ReconciliationService)

// WithTimeTolerance sets the symmetric matching window
func WithTimeTolerance(d time.Duration) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		if d > 0 {
			s.cfg.TimeTolerance = d
		}
	}
}

// WithAmountTolerance sets the maximum amount difference treated as equal
func WithAmountTolerance(tolerance decimal.Decimal) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		if tolerance.GreaterThanOrEqual(decimal.Zero) {
			s.cfg.AmountTolerance = tolerance
		}
	}
}

// WithMinorUnitThreshold sets the raw-amount magnitude above which QR amounts
// are read as minor currency units.
func WithMinorUnitThreshold(threshold decimal.Decimal) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		if threshold.GreaterThan(decimal.Zero) {
			s.cfg.MinorUnitThreshold = threshold
		}
	}
}

// WithLogger sets the logger; the default is a nop logger
func WithLogger(log *zap.Logger) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewReconciliationService creates a reconciliation service with default
// tolerances (30s, 1 currency unit).
func NewReconciliationService(opts ...ReconciliationServiceOption) *ReconciliationService {
	s := &ReconciliationService{
		cfg: DefaultMatcherConfig(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileAll runs the full reconciliation over one period's records. Inputs
// are expected to be pre-filtered to the audit period by the caller.
func (s *ReconciliationService) ReconcileAll(
	sales []Sale,
	receipts []FiscalReceipt,
	transactions []QRTransaction,
	periodStart, periodEnd time.Time,
) *ReconciliationResult {
	s.log.Info("starting reconciliation",
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
		zap.Int("sales", len(sales)),
		zap.Int("receipts", len(receipts)),
		zap.Int("transactions", len(transactions)),
	)

	var discrepancies []Discrepancy

	unmatchedSales := s.reconcileSales(sales, receipts, transactions, &discrepancies)
	s.findOrphanReceipts(sales, receipts, &discrepancies)
	s.findOrphanTransactions(sales, transactions, &discrepancies)
	s.findDuplicates(sales, &discrepancies)

	result := s.summarize(sales, receipts, transactions, discrepancies, unmatchedSales, periodStart, periodEnd)

	s.log.Info("reconciliation completed",
		zap.Int("matched", result.MatchedCount),
		zap.Int("discrepancies", len(result.Discrepancies)),
	)
	return result
}

// reconcileSales runs the sale-centric pass and returns the set of sale
// indices left without a counterpart (missing receipt or transaction).
func (s *ReconciliationService) reconcileSales(
	sales []Sale,
	receipts []FiscalReceipt,
	transactions []QRTransaction,
	discrepancies *[]Discrepancy,
) map[int]bool {
	registry := NewMatchStrategyRegistry(
		NewReceiptMatchStrategy(s.cfg, NewReceiptIndex(receipts)),
		NewQRMatchStrategy(s.cfg, NewQRIndex(transactions)),
	)

	unmatched := make(map[int]bool)
	for i := range sales {
		sale := &sales[i]

		switch {
		case sale.PaymentMethod == PaymentMethodTest:
			// Test sales are never expected to reconcile.
			appendFinding(discrepancies, Discrepancy{
				Kind:        DiscrepancyTestSale,
				MachineID:   sale.MachineID,
				Timestamp:   sale.Timestamp,
				Description: fmt.Sprintf("Test sale: %s for %s", sale.ProductName, sale.Amount),
				Sale:        sale,
				Severity:    SeverityLow,
			})
			continue

		case sale.PaymentMethod == PaymentMethodVIP:
			// No receipt or transaction expected; not an error.
			s.log.Debug("vip sale skipped", zap.String("sale_id", sale.ID))
			continue
		}

		strategy, ok := registry.For(sale.PaymentMethod)
		if !ok {
			appendFinding(discrepancies, Discrepancy{
				Kind:        DiscrepancyUnknownPayment,
				MachineID:   sale.MachineID,
				Timestamp:   sale.Timestamp,
				Description: fmt.Sprintf("Unknown payment method: %s", sale.PaymentMethod),
				Sale:        sale,
				Severity:    SeverityMedium,
			})
			continue
		}

		if strategy.FindMatch(sale) == nil {
			unmatched[i] = true
			appendFinding(discrepancies, Discrepancy{
				Kind:        strategy.MissingKind(),
				MachineID:   sale.MachineID,
				Timestamp:   sale.Timestamp,
				Description: missingDescription(strategy.MissingKind(), sale.PaymentMethod),
				Sale:        sale,
				Severity:    SeverityHigh,
			})
		}
	}
	return unmatched
}

func missingDescription(kind DiscrepancyKind, method PaymentMethod) string {
	if kind == DiscrepancyMissingReceipt {
		return fmt.Sprintf("No fiscal receipt found for %s sale", method)
	}
	return fmt.Sprintf("No QR transaction found for %s sale", method)
}

// findOrphanReceipts flags receipts with no corresponding sale. Severity is
// medium: a receipt with no sale is less actionable than a sale with no
// receipt, which the sale-centric pass already flags as high.
func (s *ReconciliationService) findOrphanReceipts(
	sales []Sale,
	receipts []FiscalReceipt,
	discrepancies *[]Discrepancy,
) {
	saleIndex := NewSaleIndex(sales)
	for i := range receipts {
		receipt := &receipts[i]
		if s.findSaleForReceipt(receipt, saleIndex) != nil {
			continue
		}
		appendFinding(discrepancies, Discrepancy{
			Kind:        DiscrepancyMissingReceipt,
			MachineID:   receipt.MachineID,
			Timestamp:   receipt.Timestamp,
			Description: fmt.Sprintf("Fiscal receipt without sale: %s", receipt.ReceiptNumber),
			Receipt:     receipt,
			Severity:    SeverityMedium,
		})
	}
}

// findSaleForReceipt searches the sale index for any same-machine sale within
// tolerance. Only amounts are compared; the payment category was already
// checked in the forward direction.
func (s *ReconciliationService) findSaleForReceipt(receipt *FiscalReceipt, idx *SaleIndex) *Sale {
	from, to := s.cfg.Window(receipt.Timestamp)
	for _, sale := range idx.Within(receipt.MachineID, from, to) {
		if s.cfg.AmountsClose(sale.Amount, receipt.Amount) {
			return sale
		}
	}
	return nil
}

// findOrphanTransactions flags QR transactions with no corresponding sale.
// Transactions often carry no machine id, so correlation runs on exact
// amount and time instead of machine.
func (s *ReconciliationService) findOrphanTransactions(
	sales []Sale,
	transactions []QRTransaction,
	discrepancies *[]Discrepancy,
) {
	amountIndex := NewSaleAmountIndex(sales)
	for i := range transactions {
		tx := &transactions[i]
		if s.findSaleForTransaction(tx, amountIndex) != nil {
			continue
		}
		machineID := tx.MachineID
		if machineID == "" {
			machineID = "UNKNOWN"
		}
		appendFinding(discrepancies, Discrepancy{
			Kind:        DiscrepancyMissingTransaction,
			MachineID:   machineID,
			Timestamp:   tx.Timestamp,
			Description: fmt.Sprintf("%s transaction without sale: %s", tx.Service, tx.TransactionID),
			Transaction: tx,
			Severity:    SeverityMedium,
		})
	}
}

// findSaleForTransaction searches for a sale of the transaction's normalized
// amount whose payment category matches the transaction's service and whose
// machine agrees when the transaction names one.
func (s *ReconciliationService) findSaleForTransaction(tx *QRTransaction, idx *SaleAmountIndex) *Sale {
	expected := PaymentMethodForService(tx.Service)
	if expected == PaymentMethodUnknown {
		return nil
	}
	amount := s.cfg.NormalizeAmount(tx.Amount)
	from, to := s.cfg.Window(tx.Timestamp)
	for _, sale := range idx.Within(amount, from, to) {
		if sale.PaymentMethod != expected {
			continue
		}
		if tx.MachineID != "" && tx.MachineID != sale.MachineID {
			continue
		}
		return sale
	}
	return nil
}

// findDuplicates flags repeat occurrences of the same (machine, timestamp,
// amount, product) tuple. The first occurrence is never flagged.
func (s *ReconciliationService) findDuplicates(sales []Sale, discrepancies *[]Discrepancy) {
	seen := make(map[string]bool, len(sales))
	for i := range sales {
		sale := &sales[i]
		key := sale.DuplicateKey()
		if !seen[key] {
			seen[key] = true
			continue
		}
		appendFinding(discrepancies, Discrepancy{
			Kind:        DiscrepancyDuplicateSale,
			MachineID:   sale.MachineID,
			Timestamp:   sale.Timestamp,
			Description: fmt.Sprintf("Duplicate sale: %s for %s", sale.ProductName, sale.Amount),
			Sale:        sale,
			Severity:    SeverityHigh,
		})
	}
}

// summarize builds the result bundle with per-machine and per-payment
// aggregates in one additional pass over sales and discrepancies.
func (s *ReconciliationService) summarize(
	sales []Sale,
	receipts []FiscalReceipt,
	transactions []QRTransaction,
	discrepancies []Discrepancy,
	unmatchedSales map[int]bool,
	periodStart, periodEnd time.Time,
) *ReconciliationResult {
	byMachine := make(map[string]MachineSummary)
	for i := range sales {
		sale := &sales[i]
		summary, ok := byMachine[sale.MachineID]
		if !ok {
			summary = MachineSummary{PaymentMethods: make(map[PaymentMethod]int)}
		}
		summary.TotalSales++
		summary.TotalAmount = summary.TotalAmount.Add(sale.Amount)
		summary.PaymentMethods[sale.PaymentMethod]++
		byMachine[sale.MachineID] = summary
	}
	for i := range discrepancies {
		machineID := discrepancies[i].MachineID
		summary, ok := byMachine[machineID]
		if !ok {
			summary = MachineSummary{PaymentMethods: make(map[PaymentMethod]int)}
		}
		summary.Discrepancies++
		byMachine[machineID] = summary
	}

	byPayment := make(map[PaymentMethod]PaymentSummary)
	for i := range sales {
		sale := &sales[i]
		summary := byPayment[sale.PaymentMethod]
		summary.Count++
		summary.Amount = summary.Amount.Add(sale.Amount)
		if unmatchedSales[i] {
			summary.Unmatched++
		} else {
			summary.Matched++
		}
		byPayment[sale.PaymentMethod] = summary
	}

	return &ReconciliationResult{
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		TotalSales:        len(sales),
		TotalReceipts:     len(receipts),
		TotalTransactions: len(transactions),
		MatchedCount:      len(sales) - len(unmatchedSales),
		Discrepancies:     discrepancies,
		ByMachine:         byMachine,
		ByPayment:         byPayment,
	}
}

// appendFinding assigns a content-derived id and appends the finding. The id
// includes the emission sequence so repeated identical findings stay distinct
// while identical runs stay byte-identical.
func appendFinding(list *[]Discrepancy, d Discrepancy) {
	payload := fmt.Sprintf("%d|%s|%s|%d|%s",
		len(*list), d.Kind, d.MachineID, d.Timestamp.UnixNano(), d.Description)
	d.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(payload))
	*list = append(*list, d)
}
