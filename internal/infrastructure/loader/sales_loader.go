package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
)

var salesRequiredColumns = []string{
	"machine_id", "datetime", "product_code",
	"product_name", "amount", "payment_method",
}

// paymentMethodAliases maps the payment strings seen in telemetry exports to
// their categories. Operators upload reports in both English and Russian.
var paymentMethodAliases = map[string]audit.PaymentMethod{
	"cash":     audit.PaymentMethodCash,
	"наличные": audit.PaymentMethodCash,
	"card":     audit.PaymentMethodCard,
	"карта":    audit.PaymentMethodCard,
	"click":    audit.PaymentMethodQRClick,
	"payme":    audit.PaymentMethodQRPayme,
	"uzum":     audit.PaymentMethodQRUzum,
	"vip":      audit.PaymentMethodVIP,
	"test":     audit.PaymentMethodTest,
	"тест":     audit.PaymentMethodTest,
}

// MapPaymentMethod maps a raw payment string to its category. Strings not in
// the alias table map to unknown; the engine reports those, not the loader.
func MapPaymentMethod(raw string) audit.PaymentMethod {
	if method, ok := paymentMethodAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return method
	}
	return audit.PaymentMethodUnknown
}

// SalesLoader reads machine sales from the telemetry Excel export
type SalesLoader struct {
	log *zap.Logger
}

// NewSalesLoader creates a sales loader
func NewSalesLoader(log *zap.Logger) *SalesLoader {
	return &SalesLoader{log: log}
}

// Load reads all sales from the workbook's first sheet
func (l *SalesLoader) Load(path string) ([]audit.Sale, error) {
	l.log.Info("loading sales", zap.String("path", path))

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open sales workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sales sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sales workbook %s has no header row", path)
	}

	index := headerIndex(rows[0])
	if missing := missingColumns(index, salesRequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("sales workbook %s missing required columns: %s",
			path, strings.Join(missing, ", "))
	}

	sales := make([]audit.Sale, 0, len(rows)-1)
	for i, row := range rows[1:] {
		sale, err := l.parseRow(row, index, i)
		if err != nil {
			l.log.Error("skipping sales row",
				zap.Int("row", i+2), zap.Error(err))
			continue
		}
		sales = append(sales, sale)
	}

	l.log.Info("loaded sales", zap.Int("count", len(sales)))
	return sales, nil
}

func (l *SalesLoader) parseRow(row []string, index map[string]int, i int) (audit.Sale, error) {
	ts, err := parseTimestamp(cell(row, index, "datetime"))
	if err != nil {
		return audit.Sale{}, err
	}
	amount, err := parseAmount(cell(row, index, "amount"))
	if err != nil {
		return audit.Sale{}, fmt.Errorf("invalid amount: %w", err)
	}

	quantity := 1
	if raw := cell(row, index, "quantity"); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil {
			return audit.Sale{}, fmt.Errorf("invalid quantity: %w", err)
		}
	}

	machineID := cell(row, index, "machine_id")
	return audit.Sale{
		ID:            fmt.Sprintf("SALE_%d_%s_%d", i, machineID, ts.Unix()),
		MachineID:     machineID,
		Timestamp:     ts,
		ProductCode:   cell(row, index, "product_code"),
		ProductName:   cell(row, index, "product_name"),
		Amount:        amount,
		PaymentMethod: MapPaymentMethod(cell(row, index, "payment_method")),
		Quantity:      quantity,
	}, nil
}
