package ledger_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/core/id"
	"pantry/internal/core/types"
	"pantry/internal/domain/ledger"
)

func TestSelectLots(t *testing.T) {
	repo := NewLedgerRepo(nil)

	tests := []struct {
		name     string
		openOnly bool
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "all lots",
			wantSQL:  "SELECT id, seq, ingredient_id, purchased, remaining, unit_price, purchased_at, supplier FROM stock_lots WHERE ingredient_id = $1 ORDER BY purchased_at, seq",
			wantArgs: []any{"beef"},
		},
		{
			name:     "open only",
			openOnly: true,
			wantSQL:  "SELECT id, seq, ingredient_id, purchased, remaining, unit_price, purchased_at, supplier FROM stock_lots WHERE ingredient_id = $1 AND remaining > $2 ORDER BY purchased_at, seq",
			wantArgs: []any{"beef", 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.selectLots("beef", tt.openOnly).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelectMovements(t *testing.T) {
	repo := NewLedgerRepo(nil)
	order := "order-7"

	sql, args, err := repo.selectMovements("bun", ledger.MovementFilter{OrderRef: &order, Limit: 20}).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, ingredient_id, direction, quantity, created_at, reason, order_ref, product_ref, lot_id, shortfall, note, performed_by "+
			"FROM stock_movements WHERE ingredient_id = $1 AND order_ref = $2 ORDER BY seq LIMIT 20",
		sql)
	assert.Equal(t, []any{"bun", "order-7"}, args)
}

func TestUpdateRemaining_GuardsDecrease(t *testing.T) {
	repo := NewLedgerRepo(nil)
	lotID := id.New()
	remaining := types.MustQuantity("1.5")

	sql, args, err := repo.updateRemaining(lotID, remaining).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE stock_lots SET remaining = $1 WHERE id = $2 AND remaining >= $3", sql)
	require.Len(t, args, 3)
	// uuid.UUID is a driver.Valuer, squirrel binds its string form.
	assert.Equal(t, lotID.String(), args[1])
}

func TestInsertLot_ReturnsSeq(t *testing.T) {
	repo := NewLedgerRepo(nil)
	lot := &ledger.StockLot{
		ID: id.New(), IngredientID: "cheese",
		Purchased: types.MustQuantity("2.4"), Remaining: types.MustQuantity("2.4"),
		UnitPrice: types.MustMoney("50"), PurchasedAt: time.Now(),
	}

	sql, args, err := repo.insertLot(lot).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO stock_lots (id,ingredient_id,purchased,remaining,unit_price,purchased_at,supplier) VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING seq",
		sql)
	assert.Len(t, args, 7)
}
