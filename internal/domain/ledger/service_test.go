package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/core/apperror"
	appctx "pantry/internal/core/context"
	"pantry/internal/core/types"
	"pantry/internal/domain/alerts"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/storage/memory"
)

func TestRecordPurchase_CheeseScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "cheese", "kg", "dairy")

	lot := f.purchase(t, "cheese", "2.4", "120.00", time.Time{})
	assertQty(t, "50", lot.UnitPrice)
	assertQty(t, "2.4", lot.Remaining)

	ing, err := f.catalog.GetIngredient(ctx, "cheese")
	require.NoError(t, err)
	assertQty(t, "50", ing.UnitPrice)

	value, err := f.svc.StockValue(ctx, "cheese")
	require.NoError(t, err)
	assertQty(t, "120", value)

	movements, err := f.svc.Movements(ctx, "cheese", ledger.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, ledger.DirectionIn, movements[0].Direction)
	assert.Equal(t, ledger.ReasonPurchase, movements[0].Reason)
	require.NotNil(t, movements[0].LotID)
	assert.Equal(t, lot.ID, *movements[0].LotID)
}

func TestRecordPurchase_LastPriceWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "oil", "l", "pantry")

	f.purchase(t, "oil", "10", "50", day1)
	f.purchase(t, "oil", "5", "40", day1.Add(time.Hour))

	ing, err := f.catalog.GetIngredient(ctx, "oil")
	require.NoError(t, err)
	assertQty(t, "8", ing.UnitPrice)

	// Valued per lot, not at the last price.
	value, err := f.svc.StockValue(ctx, "oil")
	require.NoError(t, err)
	assertQty(t, "90", value)
}

func TestRecordPurchase_ConvertsUnit(t *testing.T) {
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "flour", "kg", "dry")

	lot, err := f.svc.RecordPurchase(context.Background(), ledger.Purchase{
		IngredientID: "flour",
		Quantity:     qty("2500"),
		Unit:         "g",
		TotalPrice:   qty("5"),
		Supplier:     "Mill & Co",
	})
	require.NoError(t, err)
	assertQty(t, "2.5", lot.Purchased)
	assertQty(t, "2", lot.UnitPrice)
	require.NotNil(t, lot.Supplier)
	assert.Equal(t, "Mill & Co", *lot.Supplier)
}

func TestRecordPurchase_Rejects(t *testing.T) {
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "cheese", "kg", "dairy")

	tests := []struct {
		name  string
		p     ledger.Purchase
		check func(error) bool
	}{
		{"zero quantity", ledger.Purchase{IngredientID: "cheese", Quantity: qty("0"), TotalPrice: qty("1")}, apperror.IsInvalidArgument},
		{"negative quantity", ledger.Purchase{IngredientID: "cheese", Quantity: qty("-1"), TotalPrice: qty("1")}, apperror.IsInvalidArgument},
		{"zero price", ledger.Purchase{IngredientID: "cheese", Quantity: qty("1"), TotalPrice: qty("0")}, apperror.IsInvalidArgument},
		{"unknown ingredient", ledger.Purchase{IngredientID: "truffle", Quantity: qty("1"), TotalPrice: qty("1")}, apperror.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordPurchase(context.Background(), tt.p)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	lots, err := f.svc.Lots(context.Background(), "cheese")
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestCurrentStock_UnknownIngredientIsZero(t *testing.T) {
	f := newFixture(t, ledger.Config{})

	stock, err := f.svc.CurrentStock(context.Background(), "nothing")
	require.NoError(t, err)
	assert.True(t, stock.IsZero())

	value, err := f.svc.StockValue(context.Background(), "nothing")
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestCurrentStock_Idempotent(t *testing.T) {
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "sugar", "kg", "dry")
	f.purchase(t, "sugar", "3", "6", day1)
	f.purchase(t, "sugar", "1.5", "3", day1.Add(time.Hour))

	first := f.stock(t, "sugar")
	second := f.stock(t, "sugar")
	assert.True(t, first.Equal(second))
	assertQty(t, "4.5", first)
}

func burgerFixture(t *testing.T) *fixture {
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "beef", "kg", "meat")
	f.ingredient(t, "bun", "unit", "bakery")
	f.ingredient(t, "cheese", "kg", "dairy")
	f.product(t, "burger",
		f.usage(t, "burger-beef", "beef", "160", "g"),
		f.usage(t, "burger-bun", "bun", "1", "unit"),
	)
	f.product(t, "cheeseburger",
		f.usage(t, "cheeseburger-beef", "beef", "160", "g"),
		f.usage(t, "cheeseburger-bun", "bun", "1", "unit"),
		f.usage(t, "cheeseburger-cheese", "cheese", "30", "g"),
	)
	return f
}

func TestCheckSufficiency(t *testing.T) {
	ctx := context.Background()
	f := burgerFixture(t)
	f.purchase(t, "beef", "1", "20", day1)
	f.purchase(t, "bun", "4", "2", day1)

	ok, err := f.svc.CheckSufficiency(ctx, "burger", qty("4"))
	require.NoError(t, err)
	assert.True(t, ok.Sufficient)
	assert.Empty(t, ok.Shortages)

	short, err := f.svc.CheckSufficiency(ctx, "burger", qty("7"))
	require.NoError(t, err)
	assert.False(t, short.Sufficient)
	require.Len(t, short.Shortages, 2)
	assert.Equal(t, "beef", short.Shortages[0].IngredientID)
	assertQty(t, "1.12", short.Shortages[0].Required)
	assertQty(t, "1", short.Shortages[0].Available)
	assert.Equal(t, "bun", short.Shortages[1].IngredientID)

	// Pure check.
	assertQty(t, "1", f.stock(t, "beef"))
	assertQty(t, "4", f.stock(t, "bun"))
}

func TestCheckSufficiency_UnknownProduct(t *testing.T) {
	f := newFixture(t, ledger.Config{})

	_, err := f.svc.CheckSufficiency(context.Background(), "ghost", qty("1"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestConsumeForSale_AggregatesPerIngredient(t *testing.T) {
	ctx := appctx.WithActor(context.Background(), "till-3")
	f := burgerFixture(t)
	f.purchase(t, "beef", "1", "20", day1)
	f.purchase(t, "bun", "10", "5", day1)
	f.purchase(t, "cheese", "0.05", "1", day1)

	sale, err := f.svc.ConsumeForSale(ctx, "order-1", []ledger.SaleItem{
		{ProductID: "burger", Quantity: qty("2")},
		{ProductID: "cheeseburger", Quantity: qty("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.SaleCompleted, sale.State)
	require.Len(t, sale.Outcomes, 3)

	byID := map[string]ledger.IngredientOutcome{}
	for _, o := range sale.Outcomes {
		byID[o.IngredientID] = o
	}
	assertQty(t, "0.64", byID["beef"].Requested)
	assert.True(t, byID["beef"].Satisfied)
	assertQty(t, "4", byID["bun"].Consumed)
	assert.False(t, byID["cheese"].Satisfied)
	assertQty(t, "0.01", byID["cheese"].Shortfall)

	assert.False(t, sale.Satisfied())
	require.Len(t, sale.Shortages(), 1)

	// The cheese shortfall did not undo beef or buns.
	assertQty(t, "0.36", f.stock(t, "beef"))
	assertQty(t, "6", f.stock(t, "bun"))
	assertQty(t, "0", f.stock(t, "cheese"))

	orderRef := "order-1"
	movements, err := f.svc.Movements(ctx, "beef", ledger.MovementFilter{OrderRef: &orderRef})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, ledger.ReasonSale, m.Reason)
		assert.Equal(t, "till-3", m.PerformedBy)
	}
}

func TestConsumeForSale_StorageErrorKeepsOtherIngredients(t *testing.T) {
	ctx := context.Background()
	f := burgerFixture(t)
	f.purchase(t, "beef", "1", "20", day1)
	f.purchase(t, "bun", "10", "5", day1)
	f.purchase(t, "cheese", "1", "10", day1)

	svc := ledger.NewService(&failingLedger{LedgerStore: f.lots, ingredientID: "bun"}, f.catalog, ledger.Config{})
	sale, err := svc.ConsumeForSale(ctx, "order-9", []ledger.SaleItem{
		{ProductID: "cheeseburger", Quantity: qty("2")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, err.Error(), "consume bun")

	require.NotNil(t, sale)
	assert.Equal(t, ledger.SaleCompleted, sale.State)
	assert.True(t, sale.Partial())
	assert.Equal(t, []string{"bun"}, sale.Failed)

	// Beef came before the failure and cheese after it; both were applied.
	require.Len(t, sale.Outcomes, 2)
	assert.Equal(t, "beef", sale.Outcomes[0].IngredientID)
	assert.Equal(t, "cheese", sale.Outcomes[1].IngredientID)
	assertQty(t, "0.68", f.stock(t, "beef"))
	assertQty(t, "0.94", f.stock(t, "cheese"))
}

func TestConsumeForSale_UnknownProductAbortsBeforeConsuming(t *testing.T) {
	f := burgerFixture(t)
	f.purchase(t, "beef", "1", "20", day1)
	f.purchase(t, "bun", "10", "5", day1)

	_, err := f.svc.ConsumeForSale(context.Background(), "order-2", []ledger.SaleItem{
		{ProductID: "burger", Quantity: qty("1")},
		{ProductID: "ghost", Quantity: qty("1")},
	})
	assert.True(t, apperror.IsNotFound(err))
	assertQty(t, "1", f.stock(t, "beef"))
	assertQty(t, "10", f.stock(t, "bun"))
}

func TestConsumeForSale_InvalidItems(t *testing.T) {
	f := burgerFixture(t)

	_, err := f.svc.ConsumeForSale(context.Background(), "", []ledger.SaleItem{{ProductID: "burger", Quantity: qty("1")}})
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = f.svc.ConsumeForSale(context.Background(), "order-3", []ledger.SaleItem{{ProductID: "burger", Quantity: qty("-2")}})
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestConsumeForSale_UnresolvedUsageIsReported(t *testing.T) {
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "dough", "unit", "bakery")
	f.product(t, "focaccia",
		f.usage(t, "focaccia-dough", "dough", "1", "unit"),
		f.usage(t, "focaccia-rosemary", "rosemary", "2", "g"),
	)
	f.purchase(t, "dough", "5", "5", day1)

	sale, err := f.svc.ConsumeForSale(context.Background(), "order-4", []ledger.SaleItem{{ProductID: "focaccia", Quantity: qty("1")}})
	require.NoError(t, err)
	require.Len(t, sale.Unresolved, 1)
	assert.Equal(t, "focaccia-rosemary", sale.Unresolved[0].UsageID)
	assert.True(t, sale.Satisfied())
	assertQty(t, "4", f.stock(t, "dough"))
}

func TestConsumeForSale_CanceledContextStillConsumes(t *testing.T) {
	f := burgerFixture(t)
	f.purchase(t, "beef", "1", "20", day1)
	f.purchase(t, "bun", "10", "5", day1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sale, err := f.svc.ConsumeForSale(ctx, "order-5", []ledger.SaleItem{{ProductID: "burger", Quantity: qty("1")}})
	require.NoError(t, err)
	assert.True(t, sale.Satisfied())
	assertQty(t, "9", f.stock(t, "bun"))
}

func TestReconcile_BalancedAfterShortfalls(t *testing.T) {
	ctx := context.Background()
	f := burgerFixture(t)
	f.purchase(t, "beef", "0.5", "10", day1)
	f.purchase(t, "bun", "3", "1.5", day1)

	for i := 0; i < 3; i++ {
		_, err := f.svc.ConsumeForSale(ctx, fmt.Sprintf("order-%d", i), []ledger.SaleItem{{ProductID: "burger", Quantity: qty("2")}})
		require.NoError(t, err)
	}
	_, err := f.svc.Consume(ctx, "beef", qty("0.1"), ledger.ReasonWaste, "dropped")
	require.NoError(t, err)

	for _, ingredientID := range []string{"beef", "bun"} {
		rec, err := f.svc.Reconcile(ctx, ingredientID)
		require.NoError(t, err)
		assert.True(t, rec.Balanced, "%s: %+v", ingredientID, rec)
		assert.True(t, rec.Consumed.Equal(rec.OutTotal.Sub(rec.ShortfallTotal)))
		assert.True(t, rec.ShortfallTotal.IsPositive())
	}
}

func TestConsume_ManualReasons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "milk", "l", "dairy")
	f.purchase(t, "milk", "4", "8", day1)

	res, err := f.svc.Consume(ctx, "milk", qty("1"), "", "")
	require.NoError(t, err)
	assert.True(t, res.Satisfied)

	movements, err := f.svc.Movements(ctx, "milk", ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, ledger.ReasonAdjustment, movements[len(movements)-1].Reason)

	_, err = f.svc.Consume(ctx, "milk", qty("0"), ledger.ReasonWaste, "")
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = f.svc.Consume(ctx, "cream", qty("1"), ledger.ReasonWaste, "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteIngredient_Guards(t *testing.T) {
	ctx := context.Background()
	f := burgerFixture(t)
	f.ingredient(t, "parsley", "bundle", "produce")
	f.purchase(t, "parsley", "1", "1", day1)

	err := f.svc.DeleteIngredient(ctx, "parsley")
	assert.True(t, apperror.IsConflict(err))

	_, err = f.svc.Consume(ctx, "parsley", qty("1"), ledger.ReasonWaste, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteIngredient(ctx, "parsley"))

	_, err = f.catalog.GetIngredient(ctx, "parsley")
	assert.True(t, apperror.IsNotFound(err))

	// Referenced by recipes.
	err = f.svc.DeleteIngredient(ctx, "bun")
	assert.True(t, apperror.IsConflict(err))

	err = f.svc.DeleteIngredient(ctx, "ghost")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteIngredient_WaitsForPurchase(t *testing.T) {
	ctx := context.Background()
	cat := memory.NewCatalogStore()
	require.NoError(t, cat.SaveIngredient(ctx, &catalog.Ingredient{ID: "beef", Name: "beef", PurchaseUnit: "kg"}))

	hooked := &hookedCatalog{Repository: cat}
	svc := ledger.NewService(memory.NewLedgerStore(), hooked, ledger.Config{})

	deleted := make(chan error, 1)
	hooked.afterLookup = func() {
		go func() { deleted <- svc.DeleteIngredient(ctx, "beef") }()
		time.Sleep(20 * time.Millisecond)
	}

	_, err := svc.RecordPurchase(ctx, ledger.Purchase{
		IngredientID: "beef",
		Quantity:     qty("1"),
		TotalPrice:   types.MustMoney("10"),
	})
	require.NoError(t, err)

	// The delete ran after the purchase and found the new lot.
	assert.True(t, apperror.IsConflict(<-deleted))
	_, err = cat.GetIngredient(ctx, "beef")
	require.NoError(t, err)
	assertQty(t, "1", mustStock(t, svc, "beef"))
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	f := burgerFixture(t)
	f.purchase(t, "beef", "5", "100", day1)
	f.purchase(t, "bun", "2", "1", day1)

	low, err := f.svc.LowStock(ctx, qty("2"))
	require.NoError(t, err)
	var ids []string
	for _, l := range low {
		ids = append(ids, l.IngredientID)
	}
	assert.Equal(t, []string{"bun", "cheese"}, ids)
}

func TestLowStock_Rule(t *testing.T) {
	ctx := context.Background()
	rule, err := alerts.Compile(`stock <= threshold || (category == "meat" && stock <= threshold * 3.0)`)
	require.NoError(t, err)

	f := newFixture(t, ledger.Config{LowStockRule: rule})
	f.ingredient(t, "beef", "kg", "meat")
	f.ingredient(t, "rice", "kg", "dry")
	f.purchase(t, "beef", "5", "100", day1)
	f.purchase(t, "rice", "5", "10", day1)

	low, err := f.svc.LowStock(ctx, qty("2"))
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "beef", low[0].IngredientID)
}

func TestValuation(t *testing.T) {
	f := burgerFixture(t)
	f.purchase(t, "beef", "2", "40", day1)
	f.purchase(t, "beef", "1", "30", day1.Add(time.Hour))
	f.purchase(t, "bun", "10", "5", day1)

	v, err := f.svc.Valuation(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Levels, 3)
	assertQty(t, "75", v.Total)
	assertQty(t, "3", v.Levels[0].Quantity)
	assertQty(t, "30", v.Levels[0].UnitPrice)
}

func TestService_ConcurrentConsumptionNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ledger.Config{})
	f.ingredient(t, "coffee", "kg", "drinks")
	f.purchase(t, "coffee", "1", "30", day1)
	f.purchase(t, "coffee", "1", "32", day1.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Consume(ctx, "coffee", qty("0.05"), ledger.ReasonSale, "")
			assert.NoError(t, err)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CurrentStock(ctx, "coffee")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertQty(t, "0", f.stock(t, "coffee"))

	rec, err := f.svc.Reconcile(ctx, "coffee")
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assertQty(t, "0.5", rec.ShortfallTotal)
}

func mustStock(t *testing.T, svc *ledger.Service, ingredientID string) types.Quantity {
	t.Helper()
	q, err := svc.CurrentStock(context.Background(), ingredientID)
	require.NoError(t, err)
	return q
}
