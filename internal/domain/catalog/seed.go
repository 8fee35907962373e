package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"pantry/internal/core/types"
	"pantry/pkg/logger"
)

// usageRecord is the on-disk shape of a recipe usage. Older exports name the
// ingredient reference insumoId or ingredienteBaseId; all three keys end up
// in RecipeUsage.BaseIngredientID.
type usageRecord struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	BaseIngredientID   string         `json:"baseIngredientId"`
	IngredienteBaseID  string         `json:"ingredienteBaseId"`
	InsumoID           string         `json:"insumoId"`
	QuantityPerPortion types.Quantity `json:"quantityPerPortion"`
	Unit               string         `json:"unit"`
	Category           string         `json:"category"`
}

func (r usageRecord) normalize() RecipeUsage {
	ref := r.BaseIngredientID
	if ref == "" {
		ref = r.IngredienteBaseID
	}
	if ref == "" {
		ref = r.InsumoID
	}
	return RecipeUsage{
		ID:                 r.ID,
		Name:               r.Name,
		BaseIngredientID:   ref,
		QuantityPerPortion: r.QuantityPerPortion,
		Unit:               r.Unit,
		Category:           r.Category,
	}
}

// UnmarshalJSON accepts the legacy reference keys.
func (u *RecipeUsage) UnmarshalJSON(data []byte) error {
	var rec usageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*u = rec.normalize()
	return nil
}

type productRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	UsageIDs []string `json:"usages"`
}

// Seed is a catalog export.
type Seed struct {
	Ingredients []Ingredient    `json:"ingredients"`
	Usages      []RecipeUsage   `json:"usages"`
	Products    []productRecord `json:"products"`
}

// SeedStats reports what LoadSeed stored.
type SeedStats struct {
	Ingredients int
	Usages      int
	Products    int
	// Dangling counts usages whose ingredient reference does not exist yet.
	Dangling int
}

// LoadSeed reads a JSON catalog export and stores it.
//
// Usages pointing to unknown ingredients are stored anyway; the recipe resolver
// decides at sale time how to treat them. Invalid quantities are rejected.
func LoadSeed(ctx context.Context, repo Repository, r io.Reader) (SeedStats, error) {
	var seed Seed
	var stats SeedStats
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return stats, fmt.Errorf("decode seed: %w", err)
	}

	known := make(map[string]*Ingredient, len(seed.Ingredients))
	for i := range seed.Ingredients {
		ing := &seed.Ingredients[i]
		if err := ing.Validate(ctx); err != nil {
			return stats, fmt.Errorf("ingredient %q: %w", ing.ID, err)
		}
		if err := repo.SaveIngredient(ctx, ing); err != nil {
			return stats, fmt.Errorf("save ingredient %q: %w", ing.ID, err)
		}
		known[ing.ID] = ing
		stats.Ingredients++
	}

	for i := range seed.Usages {
		u := &seed.Usages[i]
		ing := known[u.BaseIngredientID]
		if ing == nil {
			if stored, err := repo.GetIngredient(ctx, u.BaseIngredientID); err == nil {
				ing = stored
			}
		}
		if ing == nil {
			stats.Dangling++
			logger.Warn(ctx, "usage references unknown ingredient",
				"usage_id", u.ID,
				"base_ingredient_id", u.BaseIngredientID,
			)
		}
		if err := u.Validate(ctx, ing); err != nil {
			return stats, fmt.Errorf("usage %q: %w", u.ID, err)
		}
		if err := repo.SaveUsage(ctx, u); err != nil {
			return stats, fmt.Errorf("save usage %q: %w", u.ID, err)
		}
		stats.Usages++
	}

	for _, rec := range seed.Products {
		p := &Product{ID: rec.ID, Name: rec.Name}
		for _, usageID := range rec.UsageIDs {
			u, err := repo.GetUsage(ctx, usageID)
			if err != nil {
				return stats, fmt.Errorf("product %q: %w", rec.ID, err)
			}
			p.Usages = append(p.Usages, *u)
		}
		if err := repo.SaveProduct(ctx, p); err != nil {
			return stats, fmt.Errorf("save product %q: %w", rec.ID, err)
		}
		stats.Products++
	}

	logger.Info(ctx, "catalog seed loaded",
		"ingredients", stats.Ingredients,
		"usages", stats.Usages,
		"products", stats.Products,
		"dangling", stats.Dangling,
	)
	return stats, nil
}
