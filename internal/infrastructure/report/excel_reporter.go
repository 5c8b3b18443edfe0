// Package report renders reconciliation results as Excel workbooks for the
// operations team.
package report

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
)

const (
	sheetSummary       = "Summary"
	sheetDiscrepancies = "Discrepancies"
	sheetByMachine     = "By Machine"
	sheetByPayment     = "By Payment"
)

// severityColors tints discrepancy rows by how urgent they are
var severityColors = map[audit.Severity]string{
	audit.SeverityCritical: "FF6B6B",
	audit.SeverityHigh:     "FFB366",
	audit.SeverityMedium:   "FFE066",
	audit.SeverityLow:      "95E1D3",
}

// lowSuccessRateThreshold marks payment methods whose matched share needs
// operator attention
const lowSuccessRateThreshold = 90.0

// ExcelReporter writes reconciliation reports as xlsx workbooks
type ExcelReporter struct {
	log *zap.Logger
}

// NewExcelReporter creates an Excel reporter
func NewExcelReporter(log *zap.Logger) *ExcelReporter {
	return &ExcelReporter{log: log}
}

type reportStyles struct {
	title      int
	header     int
	bordered   int
	bySeverity map[audit.Severity]int
	lowSuccess int
}

// Generate writes the report workbook into outputDir and returns its path.
// The file is named audit_report_<start>_<end>.xlsx after the audit period.
func (r *ExcelReporter) Generate(result *audit.ReconciliationResult, outputDir string) (string, error) {
	path := filepath.Join(outputDir, fmt.Sprintf("audit_report_%s_%s.xlsx",
		result.PeriodStart.Format("20060102"), result.PeriodEnd.Format("20060102")))
	r.log.Info("generating reconciliation report", zap.String("path", path))

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newReportStyles(f)
	if err != nil {
		return "", fmt.Errorf("create report styles: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return "", err
	}
	for _, name := range []string{sheetDiscrepancies, sheetByMachine, sheetByPayment} {
		if _, err := f.NewSheet(name); err != nil {
			return "", err
		}
	}

	if err := r.writeSummary(f, styles, result); err != nil {
		return "", err
	}
	if err := r.writeDiscrepancies(f, styles, result.Discrepancies); err != nil {
		return "", err
	}
	if err := r.writeMachineSummary(f, styles, result.ByMachine); err != nil {
		return "", err
	}
	if err := r.writePaymentSummary(f, styles, result.ByPayment); err != nil {
		return "", err
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	r.log.Info("report saved", zap.String("path", path),
		zap.Int("discrepancies", len(result.Discrepancies)))
	return path, nil
}

func newReportStyles(f *excelize.File) (*reportStyles, error) {
	border := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D9E2F3"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return nil, err
	}

	bordered, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return nil, err
	}

	bySeverity := make(map[audit.Severity]int, len(severityColors))
	for severity, color := range severityColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: border,
		})
		if err != nil {
			return nil, err
		}
		bySeverity[severity] = id
	}

	lowSuccess, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{severityColors[audit.SeverityMedium]}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return nil, err
	}

	return &reportStyles{
		title:      title,
		header:     header,
		bordered:   bordered,
		bySeverity: bySeverity,
		lowSuccess: lowSuccess,
	}, nil
}

func (r *ExcelReporter) writeSummary(f *excelize.File, styles *reportStyles, result *audit.ReconciliationResult) error {
	if err := f.MergeCell(sheetSummary, "A1", "F1"); err != nil {
		return err
	}
	title := fmt.Sprintf("Reconciliation report for %s - %s",
		result.PeriodStart.Format("2006-01-02"), result.PeriodEnd.Format("2006-01-02"))
	if err := f.SetCellValue(sheetSummary, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A1", "F1", styles.title); err != nil {
		return err
	}

	matchRate := "0%"
	if result.TotalSales > 0 {
		matchRate = fmt.Sprintf("%.1f%%",
			float64(result.MatchedCount)/float64(result.TotalSales)*100)
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Total sales", result.TotalSales},
		{"Total receipts", result.TotalReceipts},
		{"Total QR transactions", result.TotalTransactions},
		{"Matched", result.MatchedCount},
		{"Discrepancies found", len(result.Discrepancies)},
		{"Match rate", matchRate},
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, ref, &row); err != nil {
			return err
		}
		style := styles.bordered
		if i == 0 {
			style = styles.header
		}
		end, err := excelize.CoordinatesToCellName(len(row), i+3)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetSummary, ref, end, style); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 28)
}

func (r *ExcelReporter) writeDiscrepancies(f *excelize.File, styles *reportStyles, discrepancies []audit.Discrepancy) error {
	headers := []any{"Type", "Machine", "Date/Time", "Description", "Amount delta", "Severity"}
	if err := f.SetSheetRow(sheetDiscrepancies, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetDiscrepancies, "A1", "F1", styles.header); err != nil {
		return err
	}

	for i, d := range discrepancies {
		delta := ""
		if d.AmountDelta != nil {
			delta = d.AmountDelta.StringFixed(2)
		}
		row := []any{
			d.Kind.String(),
			d.MachineID,
			d.Timestamp.Format("2006-01-02 15:04:05"),
			d.Description,
			delta,
			d.Severity.String(),
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetDiscrepancies, start, &row); err != nil {
			return err
		}

		style, ok := styles.bySeverity[d.Severity]
		if !ok {
			style = styles.bordered
		}
		end, err := excelize.CoordinatesToCellName(len(row), i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetDiscrepancies, start, end, style); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetDiscrepancies, "A", "C", 20); err != nil {
		return err
	}
	return f.SetColWidth(sheetDiscrepancies, "D", "D", 50)
}

func (r *ExcelReporter) writeMachineSummary(f *excelize.File, styles *reportStyles, byMachine map[string]audit.MachineSummary) error {
	headers := []any{"Machine", "Sales", "Amount", "Discrepancies", "Cash", "Card", "QR"}
	if err := f.SetSheetRow(sheetByMachine, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetByMachine, "A1", "G1", styles.header); err != nil {
		return err
	}

	machines := make([]string, 0, len(byMachine))
	for id := range byMachine {
		machines = append(machines, id)
	}
	sort.Strings(machines)

	for i, id := range machines {
		summary := byMachine[id]
		qrCount := summary.PaymentMethods[audit.PaymentMethodQRClick] +
			summary.PaymentMethods[audit.PaymentMethodQRPayme] +
			summary.PaymentMethods[audit.PaymentMethodQRUzum]
		row := []any{
			id,
			summary.TotalSales,
			summary.TotalAmount.StringFixed(2),
			summary.Discrepancies,
			summary.PaymentMethods[audit.PaymentMethodCash],
			summary.PaymentMethods[audit.PaymentMethodCard],
			qrCount,
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetByMachine, start, &row); err != nil {
			return err
		}
		end, err := excelize.CoordinatesToCellName(len(row), i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetByMachine, start, end, styles.bordered); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetByMachine, "A", "G", 16)
}

func (r *ExcelReporter) writePaymentSummary(f *excelize.File, styles *reportStyles, byPayment map[audit.PaymentMethod]audit.PaymentSummary) error {
	headers := []any{"Payment method", "Count", "Amount", "Matched", "Unmatched", "Success rate"}
	if err := f.SetSheetRow(sheetByPayment, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetByPayment, "A1", "F1", styles.header); err != nil {
		return err
	}

	methods := make([]string, 0, len(byPayment))
	for method := range byPayment {
		methods = append(methods, method.String())
	}
	sort.Strings(methods)

	for i, name := range methods {
		summary := byPayment[audit.PaymentMethod(name)]
		rate := summary.SuccessRate()
		row := []any{
			name,
			summary.Count,
			summary.Amount.StringFixed(2),
			summary.Matched,
			summary.Unmatched,
			fmt.Sprintf("%.1f%%", rate),
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetByPayment, start, &row); err != nil {
			return err
		}

		style := styles.bordered
		if rate < lowSuccessRateThreshold {
			style = styles.lowSuccess
		}
		end, err := excelize.CoordinatesToCellName(len(row), i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetByPayment, start, end, style); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetByPayment, "A", "F", 16)
}
