package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind classifies an inventory movement
type MovementKind string

const (
	MovementKindRefill      MovementKind = "refill"
	MovementKindConsumption MovementKind = "consumption"
	MovementKindAdjustment  MovementKind = "adjustment"
)

// String returns the string representation
func (k MovementKind) String() string {
	return string(k)
}

// IsValid checks if the movement kind is known
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindRefill, MovementKindConsumption, MovementKindAdjustment:
		return true
	}
	return false
}

// InventoryMovement is one recorded ingredient movement on a machine, as
// logged by operators during service visits.
type InventoryMovement struct {
	Timestamp      time.Time
	MachineID      string
	IngredientCode string
	IngredientName string
	Quantity       decimal.Decimal
	Unit           string
	Kind           MovementKind
	OperatorID     string // empty when not recorded
}
