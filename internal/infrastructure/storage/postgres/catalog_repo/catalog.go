// Package catalog_repo provides the PostgreSQL implementation of catalog.Repository.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pantry/internal/core/apperror"
	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
	"pantry/internal/infrastructure/storage/postgres"
)

var (
	ingredientColumns = postgres.ExtractDBColumns[catalog.Ingredient]()
	usageColumns      = postgres.ExtractDBColumns[catalog.RecipeUsage]()
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCatalogRepo creates a catalog repository.
func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ catalog.Repository = (*CatalogRepo)(nil)

func (r *CatalogRepo) GetIngredient(ctx context.Context, ingredientID string) (*catalog.Ingredient, error) {
	sql, args, err := r.builder.Select(ingredientColumns...).
		From(postgres.IngredientsTable).
		Where(squirrel.Eq{"id": ingredientID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ing catalog.Ingredient
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &ing, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ingredient", ingredientID)
		}
		return nil, apperror.NewDatabase("get ingredient", err)
	}
	return &ing, nil
}

func (r *CatalogRepo) ListIngredients(ctx context.Context) ([]catalog.Ingredient, error) {
	sql, args, err := r.builder.Select(ingredientColumns...).
		From(postgres.IngredientsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []catalog.Ingredient{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, apperror.NewDatabase("list ingredients", err)
	}
	return out, nil
}

// SaveIngredient upserts by id.
func (r *CatalogRepo) SaveIngredient(ctx context.Context, ing *catalog.Ingredient) error {
	sql, args, err := r.upsertIngredient(ing).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("save ingredient", err)
	}
	return nil
}

func (r *CatalogRepo) upsertIngredient(ing *catalog.Ingredient) squirrel.InsertBuilder {
	updatedAt := ing.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return r.builder.Insert(postgres.IngredientsTable).
		Columns(ingredientColumns...).
		Values(ing.ID, ing.Name, ing.Category, ing.PurchaseUnit, ing.UnitPrice, updatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			purchase_unit = EXCLUDED.purchase_unit,
			unit_price = EXCLUDED.unit_price,
			updated_at = EXCLUDED.updated_at`)
}

func (r *CatalogRepo) DeleteIngredient(ctx context.Context, ingredientID string) error {
	sql, args, err := r.builder.Delete(postgres.IngredientsTable).
		Where(squirrel.Eq{"id": ingredientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("delete ingredient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("ingredient", ingredientID)
	}
	return nil
}

func (r *CatalogRepo) SetUnitPrice(ctx context.Context, ingredientID string, price types.Money, at time.Time) error {
	sql, args, err := r.builder.Update(postgres.IngredientsTable).
		Set("unit_price", price).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": ingredientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("set unit price", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("ingredient", ingredientID)
	}
	return nil
}

func (r *CatalogRepo) GetUsage(ctx context.Context, usageID string) (*catalog.RecipeUsage, error) {
	sql, args, err := r.builder.Select(usageColumns...).
		From(postgres.UsagesTable).
		Where(squirrel.Eq{"id": usageID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u catalog.RecipeUsage
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("recipe usage", usageID)
		}
		return nil, apperror.NewDatabase("get usage", err)
	}
	return &u, nil
}

func (r *CatalogRepo) SaveUsage(ctx context.Context, u *catalog.RecipeUsage) error {
	sql, args, err := r.builder.Insert(postgres.UsagesTable).
		Columns(usageColumns...).
		Values(postgres.ColumnValues(u, usageColumns)...).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_ingredient_id = EXCLUDED.base_ingredient_id,
			quantity_per_portion = EXCLUDED.quantity_per_portion,
			unit = EXCLUDED.unit,
			category = EXCLUDED.category`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("save usage", err)
	}
	return nil
}

func (r *CatalogRepo) UsagesByIngredient(ctx context.Context, ingredientID string) ([]catalog.RecipeUsage, error) {
	sql, args, err := r.builder.Select(usageColumns...).
		From(postgres.UsagesTable).
		Where(squirrel.Eq{"base_ingredient_id": ingredientID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []catalog.RecipeUsage{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, apperror.NewDatabase("usages by ingredient", err)
	}
	return out, nil
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	q := r.txm.GetQuerier(ctx)

	var p catalog.Product
	if err := pgxscan.Get(ctx, q, &p, "SELECT id, name FROM products WHERE id = $1", productID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, apperror.NewDatabase("get product", err)
	}

	sql, args, err := r.productUsages(productID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	p.Usages = []catalog.RecipeUsage{}
	if err := pgxscan.Select(ctx, q, &p.Usages, sql, args...); err != nil {
		return nil, apperror.NewDatabase("get product usages", err)
	}
	return &p, nil
}

func (r *CatalogRepo) productUsages(productID string) squirrel.SelectBuilder {
	cols := make([]string, len(usageColumns))
	for i, c := range usageColumns {
		cols[i] = "u." + c
	}
	return r.builder.Select(cols...).
		From(postgres.ProductUsagesTable + " pu").
		Join(postgres.UsagesTable + " u ON u.id = pu.usage_id").
		Where(squirrel.Eq{"pu.product_id": productID}).
		OrderBy("pu.position")
}

// SaveProduct replaces the product header and its usage list in one transaction.
func (r *CatalogRepo) SaveProduct(ctx context.Context, p *catalog.Product) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)

		if _, err := q.Exec(ctx,
			`INSERT INTO products (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			p.ID, p.Name,
		); err != nil {
			return apperror.NewDatabase("save product", err)
		}
		if _, err := q.Exec(ctx, "DELETE FROM product_usages WHERE product_id = $1", p.ID); err != nil {
			return apperror.NewDatabase("clear product usages", err)
		}
		if len(p.Usages) == 0 {
			return nil
		}

		ins := r.builder.Insert(postgres.ProductUsagesTable).Columns("product_id", "position", "usage_id")
		for i, u := range p.Usages {
			ins = ins.Values(p.ID, i, u.ID)
		}
		sql, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return apperror.NewDatabase("save product usages", err)
		}
		return nil
	})
}
