package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jamshiddins/vendbot-unified/internal/domain/audit"
)

type recipeDocument struct {
	Recipes []recipeEntry `json:"recipes"`
}

type recipeEntry struct {
	ProductCode string            `json:"product_code"`
	ProductName string            `json:"product_name"`
	Category    string            `json:"category"`
	Ingredients []ingredientEntry `json:"ingredients"`
}

type ingredientEntry struct {
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Quantity json.Number `json:"quantity"`
	Unit     string      `json:"unit"`
}

// RecipeLoader reads product recipes from the recipes JSON file
type RecipeLoader struct {
	log *zap.Logger
}

// NewRecipeLoader creates a recipe loader
func NewRecipeLoader(log *zap.Logger) *RecipeLoader {
	return &RecipeLoader{log: log}
}

// Load reads all recipes, keyed by product code
func (l *RecipeLoader) Load(path string) (map[string]audit.Recipe, error) {
	l.log.Info("loading recipes", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open recipes file: %w", err)
	}

	var doc recipeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode recipes file: %w", err)
	}

	recipes := make(map[string]audit.Recipe, len(doc.Recipes))
	for _, entry := range doc.Recipes {
		recipe, err := parseRecipe(entry)
		if err != nil {
			l.log.Error("skipping recipe",
				zap.String("product_code", entry.ProductCode), zap.Error(err))
			continue
		}
		recipes[recipe.ProductCode] = recipe
	}

	l.log.Info("loaded recipes", zap.Int("count", len(recipes)))
	return recipes, nil
}

func parseRecipe(entry recipeEntry) (audit.Recipe, error) {
	ingredients := make([]audit.RecipeIngredient, 0, len(entry.Ingredients))
	for _, ing := range entry.Ingredients {
		quantity, err := decimal.NewFromString(ing.Quantity.String())
		if err != nil {
			return audit.Recipe{}, fmt.Errorf("ingredient %s: invalid quantity: %w", ing.Code, err)
		}
		unit := ing.Unit
		if unit == "" {
			unit = "g"
		}
		ingredients = append(ingredients, audit.RecipeIngredient{
			IngredientCode: ing.Code,
			IngredientName: ing.Name,
			Quantity:       quantity,
			Unit:           unit,
		})
	}

	category := entry.Category
	if category == "" {
		category = "coffee"
	}
	return audit.Recipe{
		ProductCode: entry.ProductCode,
		ProductName: entry.ProductName,
		Ingredients: ingredients,
		Category:    category,
	}, nil
}
