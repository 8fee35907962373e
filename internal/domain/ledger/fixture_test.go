package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/storage/memory"
)

var day1 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *ledger.Service
	catalog *memory.CatalogStore
	lots    *memory.LedgerStore
}

func newFixture(t *testing.T, cfg ledger.Config) *fixture {
	t.Helper()
	cat := memory.NewCatalogStore()
	led := memory.NewLedgerStore()
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return day1.Add(72 * time.Hour) }
	}
	return &fixture{svc: ledger.NewService(led, cat, cfg), catalog: cat, lots: led}
}

func (f *fixture) ingredient(t *testing.T, id, unit, category string) {
	t.Helper()
	require.NoError(t, f.catalog.SaveIngredient(context.Background(), &catalog.Ingredient{
		ID: id, Name: id, PurchaseUnit: unit, Category: category,
	}))
}

// usage stores a usage and returns it for product wiring.
func (f *fixture) usage(t *testing.T, id, ingredientID, qty, unit string) catalog.RecipeUsage {
	t.Helper()
	u := catalog.RecipeUsage{
		ID: id, Name: id, BaseIngredientID: ingredientID,
		QuantityPerPortion: types.MustQuantity(qty), Unit: unit,
	}
	require.NoError(t, f.catalog.SaveUsage(context.Background(), &u))
	return u
}

func (f *fixture) product(t *testing.T, id string, usages ...catalog.RecipeUsage) {
	t.Helper()
	require.NoError(t, f.catalog.SaveProduct(context.Background(), &catalog.Product{ID: id, Name: id, Usages: usages}))
}

func (f *fixture) purchase(t *testing.T, ingredientID, qty, total string, at time.Time) *ledger.StockLot {
	t.Helper()
	lot, err := f.svc.RecordPurchase(context.Background(), ledger.Purchase{
		IngredientID: ingredientID,
		Quantity:     types.MustQuantity(qty),
		TotalPrice:   types.MustMoney(total),
		PurchasedAt:  at,
	})
	require.NoError(t, err)
	return lot
}

func (f *fixture) stock(t *testing.T, ingredientID string) types.Quantity {
	t.Helper()
	q, err := f.svc.CurrentStock(context.Background(), ingredientID)
	require.NoError(t, err)
	return q
}

func qty(s string) types.Quantity {
	return types.MustQuantity(s)
}

var errDiskFull = errors.New("disk full")

// failingLedger refuses outgoing movements of one ingredient.
type failingLedger struct {
	*memory.LedgerStore
	ingredientID string
}

func (r *failingLedger) AppendMovement(ctx context.Context, m *ledger.StockMovement) error {
	if m.IngredientID == r.ingredientID && m.Direction == ledger.DirectionOut {
		return errDiskFull
	}
	return r.LedgerStore.AppendMovement(ctx, m)
}

// hookedCatalog runs afterLookup once, right after the first ingredient lookup.
type hookedCatalog struct {
	catalog.Repository
	once        sync.Once
	afterLookup func()
}

func (c *hookedCatalog) GetIngredient(ctx context.Context, ingredientID string) (*catalog.Ingredient, error) {
	ing, err := c.Repository.GetIngredient(ctx, ingredientID)
	c.once.Do(c.afterLookup)
	return ing, err
}
