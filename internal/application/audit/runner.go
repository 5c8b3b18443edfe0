// Package audit orchestrates one end-to-end audit run: load the uploaded
// exports, reconcile, analyze consumption, write the Excel report.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
	"github.com/jamshiddins/vendbot-unified/internal/infrastructure/config"
	"github.com/jamshiddins/vendbot-unified/internal/infrastructure/loader"
	"github.com/jamshiddins/vendbot-unified/internal/infrastructure/report"
)

// Runner wires loaders, the reconciliation engine and the reporter together
// for one audit run over an upload folder.
type Runner struct {
	cfg       *config.Config
	log       *zap.Logger
	uploadDir string
	outputDir string
}

// NewRunner creates a runner reading from uploadDir and writing reports to
// outputDir.
func NewRunner(cfg *config.Config, log *zap.Logger, uploadDir, outputDir string) *Runner {
	return &Runner{cfg: cfg, log: log, uploadDir: uploadDir, outputDir: outputDir}
}

// Run executes one audit over the given period and returns the report path.
// Inputs whose file is absent are treated as empty; a file that exists but
// cannot be parsed fails the run. Discrepancies are findings, not failures.
func (r *Runner) Run(ctx context.Context, periodStart, periodEnd time.Time) (string, error) {
	if info, err := os.Stat(r.uploadDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("upload folder %s is not accessible", r.uploadDir)
	}
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}

	sales, receipts, transactions, recipes, movements, err := r.loadInputs()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sales = filterSales(sales, periodStart, periodEnd)
	receipts = filterReceipts(receipts, periodStart, periodEnd)
	transactions = filterTransactions(transactions, periodStart, periodEnd)

	service := audit.NewReconciliationService(
		audit.WithTimeTolerance(r.cfg.Audit.TimeTolerance()),
		audit.WithAmountTolerance(r.cfg.Audit.AmountTolerance),
		audit.WithMinorUnitThreshold(r.cfg.Audit.MinorUnitThreshold),
		audit.WithLogger(r.log),
	)
	result := service.ReconcileAll(sales, receipts, transactions, periodStart, periodEnd)

	analyzer := audit.NewIngredientAnalyzer(
		audit.WithVarianceTolerance(r.cfg.Audit.VarianceTolerancePercent),
		audit.WithAnalyzerLogger(r.log),
	)
	consumption := analyzer.AnalyzeFleet(sales, recipes, movements, periodStart, periodEnd)
	result.Discrepancies = append(result.Discrepancies, consumption...)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	reporter := report.NewExcelReporter(r.log)
	path, err := reporter.Generate(result, r.outputDir)
	if err != nil {
		return "", err
	}

	r.logSummary(result)
	return path, nil
}

// loadInputs reads every input the upload folder provides. Missing files are
// normal: operators rarely have every export for every period.
func (r *Runner) loadInputs() (
	[]audit.Sale,
	[]audit.FiscalReceipt,
	[]audit.QRTransaction,
	map[string]audit.Recipe,
	[]audit.InventoryMovement,
	error,
) {
	var sales []audit.Sale
	if path, ok := r.inputFile(r.cfg.Files.Sales); ok {
		loaded, err := loader.NewSalesLoader(r.log).Load(path)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		sales = loaded
	}

	var receipts []audit.FiscalReceipt
	if path, ok := r.inputFile(r.cfg.Files.Receipts); ok {
		loaded, err := loader.NewFiscalReceiptLoader(r.log).Load(path)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		receipts = loaded
	}

	var transactions []audit.QRTransaction
	for _, service := range r.cfg.Audit.QRServices {
		path, ok := r.inputFile(r.cfg.Files.QRFile(service))
		if !ok {
			continue
		}
		qrLoader, err := loader.NewQRTransactionLoader(service, r.log)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		loaded, err := qrLoader.Load(path)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		transactions = append(transactions, loaded...)
	}

	recipes := map[string]audit.Recipe{}
	if path, ok := r.inputFile(r.cfg.Files.Recipes); ok {
		loaded, err := loader.NewRecipeLoader(r.log).Load(path)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		recipes = loaded
	}

	var movements []audit.InventoryMovement
	if path, ok := r.inputFile(r.cfg.Files.Movements); ok {
		loaded, err := loader.NewInventoryMovementLoader(r.log).Load(path)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		movements = loaded
	}

	return sales, receipts, transactions, recipes, movements, nil
}

func (r *Runner) inputFile(name string) (string, bool) {
	path := filepath.Join(r.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		r.log.Warn("input file not found, treating as empty", zap.String("path", path))
		return "", false
	}
	return path, true
}

func (r *Runner) logSummary(result *audit.ReconciliationResult) {
	counts := result.CountByKind()
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind.String())
	}
	sort.Slice(kinds, func(i, j int) bool {
		a, b := counts[audit.DiscrepancyKind(kinds[i])], counts[audit.DiscrepancyKind(kinds[j])]
		if a != b {
			return a > b
		}
		return kinds[i] < kinds[j]
	})

	fields := []zap.Field{
		zap.Int("total_sales", result.TotalSales),
		zap.Int("total_receipts", result.TotalReceipts),
		zap.Int("total_transactions", result.TotalTransactions),
		zap.Int("matched", result.MatchedCount),
		zap.Int("discrepancies", len(result.Discrepancies)),
	}
	for _, kind := range kinds {
		fields = append(fields, zap.Int(kind, counts[audit.DiscrepancyKind(kind)]))
	}
	r.log.Info("audit completed", fields...)
}

func filterSales(sales []audit.Sale, start, end time.Time) []audit.Sale {
	filtered := sales[:0:0]
	for _, s := range sales {
		if inPeriod(s.Timestamp, start, end) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func filterReceipts(receipts []audit.FiscalReceipt, start, end time.Time) []audit.FiscalReceipt {
	filtered := receipts[:0:0]
	for _, r := range receipts {
		if inPeriod(r.Timestamp, start, end) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func filterTransactions(transactions []audit.QRTransaction, start, end time.Time) []audit.QRTransaction {
	filtered := transactions[:0:0]
	for _, tx := range transactions {
		if inPeriod(tx.Timestamp, start, end) {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

func inPeriod(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
