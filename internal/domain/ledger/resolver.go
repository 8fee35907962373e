package ledger

import (
	"context"
	"fmt"

	"pantry/internal/core/apperror"
	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/units"
	"pantry/pkg/logger"
)

// Requirement is the quantity of a base ingredient, in its purchase unit,
// needed to make some portions of a product.
type Requirement struct {
	IngredientID string         `json:"ingredientId"`
	UsageID      string         `json:"usageId"`
	ProductID    string         `json:"productId"`
	Quantity     types.Quantity `json:"quantity"`
	Unit         string         `json:"unit"`

	// Strategy names the lookup that found the ingredient.
	Strategy string `json:"strategy"`

	// Converted is false when the usage unit and the purchase unit had no
	// conversion rule and the quantity was taken 1:1.
	Converted bool `json:"converted"`
}

// UnresolvedRequirement is a usage no strategy could map to a base ingredient.
// It is reported, never raised.
type UnresolvedRequirement struct {
	ProductID            string         `json:"productId"`
	UsageID              string         `json:"usageId"`
	DeclaredIngredientID string         `json:"declaredIngredientId,omitempty"`
	Quantity             types.Quantity `json:"quantity"`
	Unit                 string         `json:"unit"`
}

// Resolution is the expansion of one product sale.
type Resolution struct {
	ProductID    string                  `json:"productId"`
	QuantitySold types.Quantity          `json:"quantitySold"`
	Requirements []Requirement           `json:"requirements"`
	Unresolved   []UnresolvedRequirement `json:"unresolved,omitempty"`
}

// IngredientStrategy is one way of locating the base ingredient behind a usage.
// found=false means "try the next strategy"; err is reserved for storage failures.
type IngredientStrategy interface {
	Name() string
	Locate(ctx context.Context, usage catalog.RecipeUsage) (ing *catalog.Ingredient, found bool, err error)
}

// DeclaredIngredient looks the usage's BaseIngredientID up.
type DeclaredIngredient struct {
	Catalog catalog.Repository
}

func (DeclaredIngredient) Name() string { return "declared" }

func (s DeclaredIngredient) Locate(ctx context.Context, usage catalog.RecipeUsage) (*catalog.Ingredient, bool, error) {
	return lookupIngredient(ctx, s.Catalog, usage.BaseIngredientID)
}

// UsageAsIngredient treats the usage id itself as an ingredient id. Older
// recipes were written straight against ingredients.
type UsageAsIngredient struct {
	Catalog catalog.Repository
}

func (UsageAsIngredient) Name() string { return "usage-id" }

func (s UsageAsIngredient) Locate(ctx context.Context, usage catalog.RecipeUsage) (*catalog.Ingredient, bool, error) {
	return lookupIngredient(ctx, s.Catalog, usage.ID)
}

func lookupIngredient(ctx context.Context, repo catalog.Repository, ingredientID string) (*catalog.Ingredient, bool, error) {
	if ingredientID == "" {
		return nil, false, nil
	}
	ing, err := repo.GetIngredient(ctx, ingredientID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return ing, true, nil
}

// DefaultStrategies returns the lookup order: declared reference, then usage id.
func DefaultStrategies(repo catalog.Repository) []IngredientStrategy {
	return []IngredientStrategy{
		DeclaredIngredient{Catalog: repo},
		UsageAsIngredient{Catalog: repo},
	}
}

// Resolver expands product sales into ingredient requirements.
type Resolver struct {
	catalog    catalog.Repository
	strategies []IngredientStrategy
}

// NewResolver creates a resolver. With no strategies DefaultStrategies is used.
func NewResolver(repo catalog.Repository, strategies ...IngredientStrategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies(repo)
	}
	return &Resolver{catalog: repo, strategies: strategies}
}

// Resolve expands quantitySold portions of a product. Only an unknown product
// (or a storage failure) is an error; usages that cannot be mapped to an
// ingredient land in Resolution.Unresolved.
func (r *Resolver) Resolve(ctx context.Context, productID string, quantitySold types.Quantity) (*Resolution, error) {
	if !quantitySold.IsPositive() {
		return nil, apperror.NewInvalidArgument("quantity", "quantity sold must be positive").
			WithDetail("product_id", productID)
	}

	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{ProductID: product.ID, QuantitySold: quantitySold}
	for _, usage := range product.Usages {
		required := usage.QuantityPerPortion.Mul(quantitySold)

		ing, strategy, err := r.locate(ctx, usage)
		if err != nil {
			return nil, fmt.Errorf("locate ingredient for usage %s: %w", usage.ID, err)
		}
		if ing == nil {
			res.Unresolved = append(res.Unresolved, UnresolvedRequirement{
				ProductID:            product.ID,
				UsageID:              usage.ID,
				DeclaredIngredientID: usage.BaseIngredientID,
				Quantity:             required,
				Unit:                 usage.Unit,
			})
			logger.Warn(ctx, "recipe usage not mapped to any ingredient",
				"code", apperror.CodeUnresolvedRequirement,
				"product_id", product.ID,
				"usage_id", usage.ID,
				"declared_ingredient_id", usage.BaseIngredientID,
			)
			continue
		}

		qty, ok := units.Convert(required, usage.Unit, ing.PurchaseUnit)
		if !ok {
			logger.Warn(ctx, "no unit conversion rule, using quantity as is",
				"product_id", product.ID,
				"usage_id", usage.ID,
				"from_unit", usage.Unit,
				"to_unit", ing.PurchaseUnit,
			)
		}

		res.Requirements = append(res.Requirements, Requirement{
			IngredientID: ing.ID,
			UsageID:      usage.ID,
			ProductID:    product.ID,
			Quantity:     qty,
			Unit:         units.Normalize(ing.PurchaseUnit),
			Strategy:     strategy,
			Converted:    ok,
		})
	}

	return res, nil
}

func (r *Resolver) locate(ctx context.Context, usage catalog.RecipeUsage) (*catalog.Ingredient, string, error) {
	for _, s := range r.strategies {
		ing, found, err := s.Locate(ctx, usage)
		if err != nil {
			return nil, "", err
		}
		if found {
			return ing, s.Name(), nil
		}
	}
	return nil, "", nil
}

// Totals sums requirements per ingredient, keeping first-seen order.
func Totals(reqs []Requirement) []Requirement {
	index := make(map[string]int, len(reqs))
	var out []Requirement
	for _, r := range reqs {
		if i, ok := index[r.IngredientID]; ok {
			out[i].Quantity = out[i].Quantity.Add(r.Quantity)
			out[i].Converted = out[i].Converted && r.Converted
			continue
		}
		index[r.IngredientID] = len(out)
		out = append(out, Requirement{
			IngredientID: r.IngredientID,
			Quantity:     r.Quantity,
			Unit:         r.Unit,
			Converted:    r.Converted,
		})
	}
	return out
}
