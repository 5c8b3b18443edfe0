package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
)

var receiptRequiredColumns = []string{
	"receipt_number", "machine_id", "datetime", "amount", "payment_method",
}

// FiscalReceiptLoader reads cash-register receipts from the KKM CSV export
type FiscalReceiptLoader struct {
	log *zap.Logger
}

// NewFiscalReceiptLoader creates a fiscal receipt loader
func NewFiscalReceiptLoader(log *zap.Logger) *FiscalReceiptLoader {
	return &FiscalReceiptLoader{log: log}
}

// Load reads all receipts from the CSV file
func (l *FiscalReceiptLoader) Load(path string) ([]audit.FiscalReceipt, error) {
	l.log.Info("loading fiscal receipts", zap.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open receipts file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // items column is optional per row

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read receipts file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("receipts file %s has no header row", path)
	}

	index := headerIndex(rows[0])
	if missing := missingColumns(index, receiptRequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("receipts file %s missing required columns: %s",
			path, strings.Join(missing, ", "))
	}

	receipts := make([]audit.FiscalReceipt, 0, len(rows)-1)
	for i, row := range rows[1:] {
		receipt, err := l.parseRow(row, index)
		if err != nil {
			l.log.Error("skipping receipt row",
				zap.Int("row", i+2), zap.Error(err))
			continue
		}
		receipts = append(receipts, receipt)
	}

	l.log.Info("loaded fiscal receipts", zap.Int("count", len(receipts)))
	return receipts, nil
}

func (l *FiscalReceiptLoader) parseRow(row []string, index map[string]int) (audit.FiscalReceipt, error) {
	ts, err := parseTimestamp(cell(row, index, "datetime"))
	if err != nil {
		return audit.FiscalReceipt{}, err
	}
	amount, err := parseAmount(cell(row, index, "amount"))
	if err != nil {
		return audit.FiscalReceipt{}, fmt.Errorf("invalid amount: %w", err)
	}

	items, err := parseReceiptItems(cell(row, index, "items"))
	if err != nil {
		return audit.FiscalReceipt{}, err
	}

	return audit.FiscalReceipt{
		ReceiptNumber: cell(row, index, "receipt_number"),
		MachineID:     cell(row, index, "machine_id"),
		Timestamp:     ts,
		Amount:        amount,
		PaymentMethod: mapReceiptPaymentMethod(cell(row, index, "payment_method")),
		Items:         items,
	}, nil
}

// mapReceiptPaymentMethod classifies a register's payment string. Registers
// emit free-form labels ("Наличными", "card payment"), so matching is by
// substring rather than the exact alias table used for sales.
func mapReceiptPaymentMethod(raw string) audit.PaymentMethod {
	raw = strings.ToLower(raw)
	switch {
	case strings.Contains(raw, "cash") || strings.Contains(raw, "налич"):
		return audit.PaymentMethodCash
	case strings.Contains(raw, "card") || strings.Contains(raw, "карт"):
		return audit.PaymentMethodCard
	}
	return audit.PaymentMethodUnknown
}

// parseReceiptItems decodes the optional itemization column, encoded as
// "Name:Amount;Name:Amount". Entries without a colon are ignored.
func parseReceiptItems(raw string) ([]audit.ReceiptItem, error) {
	if raw == "" {
		return nil, nil
	}

	var items []audit.ReceiptItem
	for _, entry := range strings.Split(raw, ";") {
		name, amountStr, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid item amount in %q: %w", entry, err)
		}
		items = append(items, audit.ReceiptItem{
			Name:   strings.TrimSpace(name),
			Amount: amount,
		})
	}
	return items, nil
}
