// Package memory keeps catalog and ledger state in process memory.
// Every read returns copies so callers never alias stored values.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pantry/internal/core/apperror"
	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
)

// CatalogStore implements catalog.Repository.
type CatalogStore struct {
	mu          sync.RWMutex
	ingredients map[string]catalog.Ingredient
	usages      map[string]catalog.RecipeUsage
	products    map[string]productRow
}

// productRow is a product header with usage references, as stored.
type productRow struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	UsageIDs []string `json:"usageIds"`
}

// NewCatalogStore creates an empty catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		ingredients: make(map[string]catalog.Ingredient),
		usages:      make(map[string]catalog.RecipeUsage),
		products:    make(map[string]productRow),
	}
}

func (s *CatalogStore) GetIngredient(ctx context.Context, ingredientID string) (*catalog.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, ok := s.ingredients[ingredientID]
	if !ok {
		return nil, apperror.NewNotFound("ingredient", ingredientID)
	}
	return &ing, nil
}

// ListIngredients returns ingredients sorted by id.
func (s *CatalogStore) ListIngredients(ctx context.Context) ([]catalog.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CatalogStore) SaveIngredient(ctx context.Context, ingredient *catalog.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[ingredient.ID] = *ingredient
	return nil
}

func (s *CatalogStore) DeleteIngredient(ctx context.Context, ingredientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingredients[ingredientID]; !ok {
		return apperror.NewNotFound("ingredient", ingredientID)
	}
	delete(s.ingredients, ingredientID)
	return nil
}

func (s *CatalogStore) SetUnitPrice(ctx context.Context, ingredientID string, price types.Money, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ing, ok := s.ingredients[ingredientID]
	if !ok {
		return apperror.NewNotFound("ingredient", ingredientID)
	}
	ing.UnitPrice = price
	ing.UpdatedAt = at
	s.ingredients[ingredientID] = ing
	return nil
}

func (s *CatalogStore) GetUsage(ctx context.Context, usageID string) (*catalog.RecipeUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usages[usageID]
	if !ok {
		return nil, apperror.NewNotFound("recipe usage", usageID)
	}
	return &u, nil
}

func (s *CatalogStore) SaveUsage(ctx context.Context, usage *catalog.RecipeUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usages[usage.ID] = *usage
	return nil
}

// UsagesByIngredient returns matching usages sorted by id.
func (s *CatalogStore) UsagesByIngredient(ctx context.Context, ingredientID string) ([]catalog.RecipeUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.RecipeUsage
	for _, u := range s.usages {
		if u.BaseIngredientID == ingredientID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProduct joins the product with its usages. A usage reference that no
// longer exists is skipped.
func (s *CatalogStore) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	p := &catalog.Product{ID: row.ID, Name: row.Name, Usages: make([]catalog.RecipeUsage, 0, len(row.UsageIDs))}
	for _, uid := range row.UsageIDs {
		if u, ok := s.usages[uid]; ok {
			p.Usages = append(p.Usages, u)
		}
	}
	return p, nil
}

func (s *CatalogStore) SaveProduct(ctx context.Context, product *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := productRow{ID: product.ID, Name: product.Name, UsageIDs: make([]string, len(product.Usages))}
	for i, u := range product.Usages {
		row.UsageIDs[i] = u.ID
	}
	s.products[product.ID] = row
	return nil
}

var _ catalog.Repository = (*CatalogStore)(nil)
