package ledger

import (
	"context"

	"pantry/internal/core/id"
	"pantry/internal/core/types"
)

// Repository persists lots and movements.
type Repository interface {
	// SaveLot inserts a new lot and assigns its Seq.
	SaveLot(ctx context.Context, lot *StockLot) error

	// UpdateLotRemaining sets the remaining quantity of a lot. Implementations
	// refuse values below zero or above the current remaining quantity.
	UpdateLotRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity) error

	// AppendMovement writes a movement. Movements are never updated.
	AppendMovement(ctx context.Context, movement *StockMovement) error

	// QueryLotsByIngredient returns lots ordered oldest purchase first, then by Seq.
	// With openOnly, depleted lots are omitted.
	QueryLotsByIngredient(ctx context.Context, ingredientID string, openOnly bool) ([]StockLot, error)

	// ListMovements returns the movements of an ingredient in write order.
	ListMovements(ctx context.Context, ingredientID string, filter MovementFilter) ([]StockMovement, error)
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	OrderRef *string
	Limit    int
}
