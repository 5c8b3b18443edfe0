package audit

import "github.com/shopspring/decimal"

// RecipeIngredient is one line of a recipe's bill of materials
type RecipeIngredient struct {
	IngredientCode string
	IngredientName string
	Quantity       decimal.Decimal
	Unit           string
}

// Recipe is the theoretical bill of materials for one unit of a product
type Recipe struct {
	ProductCode string
	ProductName string
	Ingredients []RecipeIngredient
	Category    string
}
