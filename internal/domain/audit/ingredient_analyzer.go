package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IngredientAnalyzer compares theoretical ingredient draw (recipes × sales)
// against actual refill movements and flags variance. It runs independently
// of reconciliation, is read-only over its inputs, and may be invoked per
// machine or for the whole fleet.
type IngredientAnalyzer struct {
	tolerancePercent decimal.Decimal
	log              *zap.Logger
}

// AnalyzerOption is a functional option for configuring IngredientAnalyzer
type AnalyzerOption func(*IngredientAnalyzer)

// WithVarianceTolerance sets the variance percentage below which no finding
// is emitted.
func WithVarianceTolerance(percent decimal.Decimal) AnalyzerOption {
	return func(a *IngredientAnalyzer) {
		if percent.GreaterThanOrEqual(decimal.Zero) {
			a.tolerancePercent = percent
		}
	}
}

// WithAnalyzerLogger sets the logger; the default is a nop logger
func WithAnalyzerLogger(log *zap.Logger) AnalyzerOption {
	return func(a *IngredientAnalyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// NewIngredientAnalyzer creates an analyzer with the default 5% tolerance
func NewIngredientAnalyzer(opts ...AnalyzerOption) *IngredientAnalyzer {
	a := &IngredientAnalyzer{
		tolerancePercent: decimal.NewFromInt(5),
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeConsumption compares theoretical and actual ingredient consumption
// for one machine over the period. Findings are timestamped at the period end
// so identical inputs always produce identical findings.
func (a *IngredientAnalyzer) AnalyzeConsumption(
	sales []Sale,
	recipes map[string]Recipe,
	movements []InventoryMovement,
	machineID string,
	periodStart, periodEnd time.Time,
) []Discrepancy {
	a.log.Info("analyzing ingredient consumption", zap.String("machine_id", machineID))

	theoretical := a.theoreticalConsumption(sales, recipes, machineID)
	actual := a.actualRefills(movements, machineID, periodStart, periodEnd)

	return a.compare(theoretical, actual, machineID, periodEnd)
}

// AnalyzeFleet runs the per-machine analysis for every machine that appears
// in the sales or movements, in ascending machine order.
func (a *IngredientAnalyzer) AnalyzeFleet(
	sales []Sale,
	recipes map[string]Recipe,
	movements []InventoryMovement,
	periodStart, periodEnd time.Time,
) []Discrepancy {
	machines := make(map[string]bool)
	for i := range sales {
		machines[sales[i].MachineID] = true
	}
	for i := range movements {
		machines[movements[i].MachineID] = true
	}

	ordered := make([]string, 0, len(machines))
	for id := range machines {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var findings []Discrepancy
	for _, machineID := range ordered {
		findings = append(findings,
			a.AnalyzeConsumption(sales, recipes, movements, machineID, periodStart, periodEnd)...)
	}
	return findings
}

// theoreticalConsumption accumulates per-ingredient draw from the machine's
// sales. A product without a recipe is a data-quality gap, not a machine
// discrepancy: logged and skipped.
func (a *IngredientAnalyzer) theoreticalConsumption(
	sales []Sale,
	recipes map[string]Recipe,
	machineID string,
) map[string]decimal.Decimal {
	consumption := make(map[string]decimal.Decimal)
	for i := range sales {
		sale := &sales[i]
		if sale.MachineID != machineID {
			continue
		}
		recipe, ok := recipes[sale.ProductCode]
		if !ok {
			a.log.Warn("recipe not found for product", zap.String("product_code", sale.ProductCode))
			continue
		}
		quantity := decimal.NewFromInt(int64(sale.Quantity))
		for _, ingredient := range recipe.Ingredients {
			code := ingredient.IngredientCode
			consumption[code] = consumption[code].Add(ingredient.Quantity.Mul(quantity))
		}
	}
	return consumption
}

// actualRefills accumulates per-ingredient refill quantities on the machine
// within [periodStart, periodEnd].
func (a *IngredientAnalyzer) actualRefills(
	movements []InventoryMovement,
	machineID string,
	periodStart, periodEnd time.Time,
) map[string]decimal.Decimal {
	refills := make(map[string]decimal.Decimal)
	for i := range movements {
		m := &movements[i]
		if m.MachineID != machineID || m.Kind != MovementKindRefill {
			continue
		}
		if m.Timestamp.Before(periodStart) || m.Timestamp.After(periodEnd) {
			continue
		}
		refills[m.IngredientCode] = refills[m.IngredientCode].Add(m.Quantity)
	}
	return refills
}

// compare walks the union of ingredient codes and emits excess-consumption
// findings for refills without sales and for variance beyond tolerance.
func (a *IngredientAnalyzer) compare(
	theoretical, actual map[string]decimal.Decimal,
	machineID string,
	timestamp time.Time,
) []Discrepancy {
	codes := make(map[string]bool)
	for code := range theoretical {
		codes[code] = true
	}
	for code := range actual {
		codes[code] = true
	}
	ordered := make([]string, 0, len(codes))
	for code := range codes {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)

	var findings []Discrepancy
	for _, code := range ordered {
		theo := theoretical[code]
		act := actual[code]

		if theo.IsZero() {
			if act.GreaterThan(decimal.Zero) {
				appendFinding(&findings, Discrepancy{
					Kind:        DiscrepancyExcessConsumption,
					MachineID:   machineID,
					Timestamp:   timestamp,
					Description: fmt.Sprintf("Refill without sales for %s: %s", code, act),
					Severity:    SeverityMedium,
				})
			}
			continue
		}

		variancePercent := act.Sub(theo).Div(theo).Mul(decimal.NewFromInt(100))
		if variancePercent.Abs().LessThanOrEqual(a.tolerancePercent) {
			continue
		}

		delta := act.Sub(theo)
		appendFinding(&findings, Discrepancy{
			Kind:      DiscrepancyExcessConsumption,
			MachineID: machineID,
			Timestamp: timestamp,
			Description: fmt.Sprintf("Consumption variance for %s: theoretical=%s, actual=%s, variance=%s%%",
				code, theo, act, variancePercent.Round(1)),
			AmountDelta: &delta,
			Severity:    SeverityForVariance(variancePercent),
		})
	}
	return findings
}

// SeverityForVariance grades a consumption variance percentage. The low row
// is below the emission tolerance today; it stays for when the tolerance is
// relaxed.
func SeverityForVariance(variancePercent decimal.Decimal) Severity {
	abs := variancePercent.Abs()
	switch {
	case abs.GreaterThan(decimal.NewFromInt(20)):
		return SeverityCritical
	case abs.GreaterThan(decimal.NewFromInt(10)):
		return SeverityHigh
	case abs.GreaterThan(decimal.NewFromInt(5)):
		return SeverityMedium
	default:
		return SeverityLow
	}
}
