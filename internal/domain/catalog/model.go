// Package catalog holds the reference data the ledger reads: base ingredients,
// recipe usages and products. Menu and price management live elsewhere; this
// package only keeps what stock tracking needs.
package catalog

import (
	"context"
	"time"

	"pantry/internal/core/apperror"
	"pantry/internal/core/types"
	"pantry/internal/domain/units"
)

// Ingredient is a purchasable raw material (base ingredient).
type Ingredient struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`

	// PurchaseUnit is the unit lots of this ingredient are bought and counted in.
	PurchaseUnit string `db:"purchase_unit" json:"purchaseUnit"`

	// UnitPrice is the price per PurchaseUnit paid on the latest purchase.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate implements basic field checks.
func (i *Ingredient) Validate(ctx context.Context) error {
	if i.ID == "" {
		return apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.PurchaseUnit == "" {
		return apperror.NewValidation("purchase unit is required").WithDetail("field", "purchaseUnit")
	}
	if i.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").WithDetail("field", "unitPrice")
	}
	return nil
}

// RecipeUsage is a product-facing alias of a base ingredient with a fixed
// per-portion quantity, e.g. "160 g of Beef".
type RecipeUsage struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	BaseIngredientID   string         `db:"base_ingredient_id" json:"baseIngredientId"`
	QuantityPerPortion types.Quantity `db:"quantity_per_portion" json:"quantityPerPortion"`
	Unit               string         `db:"unit" json:"unit"`
	Category           string         `db:"category" json:"category"`
}

// Validate checks the usage against the ingredient it points to.
// A nil ingredient skips the unit check (legacy data whose reference is resolved later).
func (u *RecipeUsage) Validate(ctx context.Context, ingredient *Ingredient) error {
	if u.ID == "" {
		return apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	if !u.QuantityPerPortion.IsPositive() {
		return apperror.NewValidation("quantity per portion must be positive").
			WithDetail("field", "quantityPerPortion").
			WithDetail("value", u.QuantityPerPortion.String())
	}
	if u.Unit == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	if ingredient != nil && !units.Compatible(u.Unit, ingredient.PurchaseUnit) {
		return apperror.NewValidation("usage unit cannot be converted to the ingredient purchase unit").
			WithDetail("field", "unit").
			WithDetail("unit", u.Unit).
			WithDetail("purchase_unit", ingredient.PurchaseUnit)
	}
	return nil
}

// Product is a sellable item. The ledger reads its recipe only.
type Product struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Usages []RecipeUsage `json:"usages"`
}
