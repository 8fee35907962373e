package catalog

import (
	"context"
	"fmt"
	"time"

	"pantry/internal/core/apperror"
	"pantry/pkg/logger"
)

// Service provides catalog maintenance used by stock entry and seeding.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Repo exposes the underlying repository to the ledger.
func (s *Service) Repo() Repository {
	return s.repo
}

// CreateIngredient validates and stores a base ingredient.
func (s *Service) CreateIngredient(ctx context.Context, ing *Ingredient) error {
	if err := ing.Validate(ctx); err != nil {
		return err
	}
	if _, err := s.repo.GetIngredient(ctx, ing.ID); err == nil {
		return apperror.NewDuplicate("ingredient", "id", ing.ID)
	} else if !apperror.IsNotFound(err) {
		return err
	}

	ing.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveIngredient(ctx, ing); err != nil {
		return fmt.Errorf("save ingredient: %w", err)
	}

	logger.Info(ctx, "ingredient created", "ingredient_id", ing.ID, "purchase_unit", ing.PurchaseUnit)
	return nil
}

// CreateUsage stores a recipe usage. The referenced ingredient must exist and
// its purchase unit must be convertible from the usage unit.
func (s *Service) CreateUsage(ctx context.Context, usage *RecipeUsage) error {
	if usage.BaseIngredientID == "" {
		return apperror.NewValidation("base ingredient is required").WithDetail("field", "baseIngredientId")
	}
	ing, err := s.repo.GetIngredient(ctx, usage.BaseIngredientID)
	if err != nil {
		return err
	}
	if err := usage.Validate(ctx, ing); err != nil {
		return err
	}
	if err := s.repo.SaveUsage(ctx, usage); err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

// CreateProduct stores a product whose usages already exist.
func (s *Service) CreateProduct(ctx context.Context, product *Product) error {
	if product.ID == "" {
		return apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	for i, u := range product.Usages {
		stored, err := s.repo.GetUsage(ctx, u.ID)
		if err != nil {
			return err
		}
		product.Usages[i] = *stored
	}
	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}
