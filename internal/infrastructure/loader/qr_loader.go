package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
	"github.com/jamshiddins/vendbot-unified/internal/domain/shared"
)

// qrColumnMap names the columns one payment service uses for the fields we
// need. Every service exports a different schema.
type qrColumnMap struct {
	transactionID string
	datetime      string
	amount        string
	status        string
	machineRef    string
}

var qrColumnMaps = map[string]qrColumnMap{
	"click": {
		transactionID: "payment_id",
		datetime:      "payment_date",
		amount:        "amount",
		status:        "status",
		machineRef:    "merchant_trans_id",
	},
	"payme": {
		transactionID: "transaction",
		datetime:      "create_time",
		amount:        "amount",
		status:        "state",
		machineRef:    "order_id",
	},
	"uzum": {
		transactionID: "trans_id",
		datetime:      "created_at",
		amount:        "amount",
		status:        "status",
		machineRef:    "external_id",
	},
}

// machineRefPatterns are tried in order against a service's merchant
// reference. Observed formats: "VM_001_2024-06-14_12345",
// "machine-15-order-789", a bare "15", "pay_15_778".
var machineRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)VM[_-]?(\d+)`),
	regexp.MustCompile(`(?i)machine[_-]?(\d+)`),
	regexp.MustCompile(`^(\d+)$`),
	regexp.MustCompile(`_(\d+)_`),
}

// ExtractMachineID pulls a machine id out of a payment service's merchant
// reference. When no pattern matches, the reference is returned as-is so the
// engine can still use it for exact comparisons; "" means no reference at all.
func ExtractMachineID(ref string) string {
	if ref == "" {
		return ""
	}
	for _, pattern := range machineRefPatterns {
		if m := pattern.FindStringSubmatch(ref); m != nil {
			return m[1]
		}
	}
	return ref
}

// QRTransactionLoader reads one payment service's transaction export.
// Amounts are loaded exactly as exported; services that report minor currency
// units are normalized by the reconciliation engine, not here, so the
// conversion is applied exactly once.
type QRTransactionLoader struct {
	service string
	columns qrColumnMap
	log     *zap.Logger
}

// NewQRTransactionLoader creates a loader for the given payment service
func NewQRTransactionLoader(service string, log *zap.Logger) (*QRTransactionLoader, error) {
	service = strings.ToLower(service)
	columns, ok := qrColumnMaps[service]
	if !ok {
		return nil, shared.NewDomainError("UNKNOWN_QR_SERVICE",
			fmt.Sprintf("unknown QR service: %s", service))
	}
	return &QRTransactionLoader{service: service, columns: columns, log: log}, nil
}

// Load reads all transactions from the workbook's first sheet
func (l *QRTransactionLoader) Load(path string) ([]audit.QRTransaction, error) {
	l.log.Info("loading QR transactions",
		zap.String("service", l.service), zap.String("path", path))

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s workbook: %w", l.service, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", l.service, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s workbook %s has no header row", l.service, path)
	}

	index := headerIndex(rows[0])
	required := []string{l.columns.transactionID, l.columns.datetime, l.columns.amount}
	if missing := missingColumns(index, required); len(missing) > 0 {
		return nil, fmt.Errorf("%s workbook %s missing required columns: %s",
			l.service, path, strings.Join(missing, ", "))
	}

	transactions := make([]audit.QRTransaction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		tx, err := l.parseRow(row, index, i)
		if err != nil {
			l.log.Error("skipping transaction row",
				zap.String("service", l.service),
				zap.Int("row", i+2), zap.Error(err))
			continue
		}
		transactions = append(transactions, tx)
	}

	l.log.Info("loaded QR transactions",
		zap.String("service", l.service), zap.Int("count", len(transactions)))
	return transactions, nil
}

func (l *QRTransactionLoader) parseRow(row []string, index map[string]int, i int) (audit.QRTransaction, error) {
	ts, err := parseTimestamp(cell(row, index, l.columns.datetime))
	if err != nil {
		return audit.QRTransaction{}, err
	}
	amount, err := parseAmount(cell(row, index, l.columns.amount))
	if err != nil {
		return audit.QRTransaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	transactionID := cell(row, index, l.columns.transactionID)
	if transactionID == "" {
		transactionID = fmt.Sprintf("%s_%d", l.service, i)
	}

	status := cell(row, index, l.columns.status)
	if status == "" {
		status = "success"
	}

	return audit.QRTransaction{
		TransactionID: transactionID,
		Service:       l.service,
		Timestamp:     ts,
		Amount:        amount,
		MachineID:     ExtractMachineID(cell(row, index, l.columns.machineRef)),
		Status:        status,
	}, nil
}
