package catalog

import (
	"context"
	"time"

	"pantry/internal/core/types"
)

// Repository stores catalog entities.
// Get* methods return an apperror NOT_FOUND when the entity does not exist.
type Repository interface {
	GetIngredient(ctx context.Context, ingredientID string) (*Ingredient, error)
	ListIngredients(ctx context.Context) ([]Ingredient, error)
	SaveIngredient(ctx context.Context, ingredient *Ingredient) error
	DeleteIngredient(ctx context.Context, ingredientID string) error

	// SetUnitPrice overwrites the displayed price of an ingredient.
	SetUnitPrice(ctx context.Context, ingredientID string, price types.Money, at time.Time) error

	GetUsage(ctx context.Context, usageID string) (*RecipeUsage, error)
	SaveUsage(ctx context.Context, usage *RecipeUsage) error

	// UsagesByIngredient returns the usages whose declared base ingredient is ingredientID.
	UsagesByIngredient(ctx context.Context, ingredientID string) ([]RecipeUsage, error)

	// GetProduct returns the product with its usages in recipe order.
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// SaveProduct stores the product header and its usage references.
	// Usages themselves must already be saved.
	SaveProduct(ctx context.Context, product *Product) error
}
