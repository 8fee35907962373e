package dto

import (
	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
)

// CreateIngredientRequest creates a base ingredient.
type CreateIngredientRequest struct {
	ID           string      `json:"id" binding:"required"`
	Name         string      `json:"name" binding:"required"`
	Category     string      `json:"category"`
	PurchaseUnit string      `json:"purchaseUnit" binding:"required"`
	UnitPrice    types.Money `json:"unitPrice"`
}

// ToIngredient converts to the domain entity.
func (r *CreateIngredientRequest) ToIngredient() *catalog.Ingredient {
	return &catalog.Ingredient{
		ID:           r.ID,
		Name:         r.Name,
		Category:     r.Category,
		PurchaseUnit: r.PurchaseUnit,
		UnitPrice:    r.UnitPrice,
	}
}

// CreateUsageRequest creates a recipe usage.
type CreateUsageRequest struct {
	ID                 string         `json:"id" binding:"required"`
	Name               string         `json:"name"`
	BaseIngredientID   string         `json:"baseIngredientId" binding:"required"`
	QuantityPerPortion types.Quantity `json:"quantityPerPortion"`
	Unit               string         `json:"unit" binding:"required"`
	Category           string         `json:"category"`
}

// ToUsage converts to the domain entity.
func (r *CreateUsageRequest) ToUsage() *catalog.RecipeUsage {
	return &catalog.RecipeUsage{
		ID:                 r.ID,
		Name:               r.Name,
		BaseIngredientID:   r.BaseIngredientID,
		QuantityPerPortion: r.QuantityPerPortion,
		Unit:               r.Unit,
		Category:           r.Category,
	}
}

// CreateProductRequest creates a product from existing usages.
type CreateProductRequest struct {
	ID       string   `json:"id" binding:"required"`
	Name     string   `json:"name"`
	UsageIDs []string `json:"usageIds"`
}

// ToProduct converts to the domain entity. Usages carry ids only; the service
// loads the rest.
func (r *CreateProductRequest) ToProduct() *catalog.Product {
	p := &catalog.Product{ID: r.ID, Name: r.Name, Usages: make([]catalog.RecipeUsage, len(r.UsageIDs))}
	for i, uid := range r.UsageIDs {
		p.Usages[i].ID = uid
	}
	return p
}
