// Package ledger_repo provides the PostgreSQL implementation of ledger.Repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pantry/internal/core/apperror"
	"pantry/internal/core/id"
	"pantry/internal/core/types"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/storage/postgres"
)

var (
	lotColumns       = postgres.ExtractDBColumns[ledger.StockLot]()
	// seq is assigned by the database.
	lotInsertColumns = postgres.ExtractDBColumns[ledger.StockLot]("seq")
	movementColumns  = postgres.ExtractDBColumns[ledger.StockMovement]()
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// SaveLot inserts the lot; seq comes from the sequence.
func (r *LedgerRepo) SaveLot(ctx context.Context, lot *ledger.StockLot) error {
	sql, args, err := r.insertLot(lot).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&lot.Seq); err != nil {
		return apperror.NewDatabase("insert lot", err)
	}
	return nil
}

func (r *LedgerRepo) insertLot(lot *ledger.StockLot) squirrel.InsertBuilder {
	return r.builder.Insert(postgres.LotsTable).
		Columns(lotInsertColumns...).
		Values(postgres.ColumnValues(lot, lotInsertColumns)...).
		Suffix("RETURNING seq")
}

// UpdateLotRemaining only lets remaining go down, never below zero. The guard
// is in the WHERE clause so a concurrent writer cannot slip past it.
func (r *LedgerRepo) UpdateLotRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity) error {
	if remaining.IsNegative() {
		return apperror.NewConflict("lot remaining cannot be negative").
			WithDetail("lot_id", lotID.String()).
			WithDetail("requested", remaining.String())
	}

	sql, args, err := r.updateRemaining(lotID, remaining).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	q := r.txm.GetQuerier(ctx)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("update lot remaining", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current types.Quantity
	if err := pgxscan.Get(ctx, q, &current, "SELECT remaining FROM stock_lots WHERE id = $1", lotID); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound("lot", lotID.String())
		}
		return apperror.NewDatabase("get lot remaining", err)
	}
	return apperror.NewConflict("lot remaining can only decrease").
		WithDetail("lot_id", lotID.String()).
		WithDetail("current", current.String()).
		WithDetail("requested", remaining.String())
}

func (r *LedgerRepo) updateRemaining(lotID id.ID, remaining types.Quantity) squirrel.UpdateBuilder {
	return r.builder.Update(postgres.LotsTable).
		Set("remaining", remaining).
		Where(squirrel.Eq{"id": lotID}).
		Where(squirrel.GtOrEq{"remaining": remaining})
}

func (r *LedgerRepo) AppendMovement(ctx context.Context, m *ledger.StockMovement) error {
	sql, args, err := r.builder.Insert(postgres.MovementsTable).
		Columns(movementColumns...).
		Values(postgres.ColumnValues(m, movementColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("insert movement", err)
	}
	return nil
}

func (r *LedgerRepo) QueryLotsByIngredient(ctx context.Context, ingredientID string, openOnly bool) ([]ledger.StockLot, error) {
	sql, args, err := r.selectLots(ingredientID, openOnly).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lots := []ledger.StockLot{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select lots", err)
	}
	return lots, nil
}

func (r *LedgerRepo) selectLots(ingredientID string, openOnly bool) squirrel.SelectBuilder {
	q := r.builder.Select(lotColumns...).
		From(postgres.LotsTable).
		Where(squirrel.Eq{"ingredient_id": ingredientID}).
		OrderBy("purchased_at", "seq")
	if openOnly {
		q = q.Where(squirrel.Gt{"remaining": 0})
	}
	return q
}

func (r *LedgerRepo) ListMovements(ctx context.Context, ingredientID string, filter ledger.MovementFilter) ([]ledger.StockMovement, error) {
	sql, args, err := r.selectMovements(ingredientID, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := []ledger.StockMovement{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select movements", err)
	}
	return movements, nil
}

func (r *LedgerRepo) selectMovements(ingredientID string, filter ledger.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).
		From(postgres.MovementsTable).
		Where(squirrel.Eq{"ingredient_id": ingredientID}).
		OrderBy("seq")
	if filter.OrderRef != nil {
		q = q.Where(squirrel.Eq{"order_ref": *filter.OrderRef})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}
