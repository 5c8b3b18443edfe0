package loader

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
)

var movementRequiredColumns = []string{
	"machine_id", "datetime", "ingredient_code", "quantity", "movement_type",
}

// InventoryMovementLoader reads operator-logged ingredient movements from the
// inventory Excel export
type InventoryMovementLoader struct {
	log *zap.Logger
}

// NewInventoryMovementLoader creates an inventory movement loader
func NewInventoryMovementLoader(log *zap.Logger) *InventoryMovementLoader {
	return &InventoryMovementLoader{log: log}
}

// Load reads all movements from the workbook's first sheet
func (l *InventoryMovementLoader) Load(path string) ([]audit.InventoryMovement, error) {
	l.log.Info("loading inventory movements", zap.String("path", path))

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open movements workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read movements sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("movements workbook %s has no header row", path)
	}

	index := headerIndex(rows[0])
	if missing := missingColumns(index, movementRequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("movements workbook %s missing required columns: %s",
			path, strings.Join(missing, ", "))
	}

	movements := make([]audit.InventoryMovement, 0, len(rows)-1)
	for i, row := range rows[1:] {
		movement, err := l.parseRow(row, index)
		if err != nil {
			l.log.Error("skipping movement row",
				zap.Int("row", i+2), zap.Error(err))
			continue
		}
		movements = append(movements, movement)
	}

	l.log.Info("loaded inventory movements", zap.Int("count", len(movements)))
	return movements, nil
}

func (l *InventoryMovementLoader) parseRow(row []string, index map[string]int) (audit.InventoryMovement, error) {
	ts, err := parseTimestamp(cell(row, index, "datetime"))
	if err != nil {
		return audit.InventoryMovement{}, err
	}
	quantity, err := parseAmount(cell(row, index, "quantity"))
	if err != nil {
		return audit.InventoryMovement{}, fmt.Errorf("invalid quantity: %w", err)
	}

	kind := audit.MovementKind(strings.ToLower(cell(row, index, "movement_type")))
	if !kind.IsValid() {
		return audit.InventoryMovement{}, fmt.Errorf("unknown movement type %q", kind)
	}

	unit := cell(row, index, "unit")
	if unit == "" {
		unit = "g"
	}

	name := cell(row, index, "ingredient_name")
	code := cell(row, index, "ingredient_code")
	if name == "" {
		name = code
	}

	return audit.InventoryMovement{
		Timestamp:      ts,
		MachineID:      cell(row, index, "machine_id"),
		IngredientCode: code,
		IngredientName: name,
		Quantity:       quantity,
		Unit:           unit,
		Kind:           kind,
		OperatorID:     cell(row, index, "operator_id"),
	}, nil
}
