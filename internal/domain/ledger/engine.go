package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	appctx "pantry/internal/core/context"
	"pantry/internal/core/id"
	"pantry/internal/core/types"
)

// ConsumeRequest asks the engine to take a quantity of one ingredient.
type ConsumeRequest struct {
	IngredientID string
	Quantity     types.Quantity
	Reason       string
	OrderRef     string
	ProductRef   string
	Note         string
}

// LotSlice is the part of a consumption taken from one lot.
type LotSlice struct {
	LotID     id.ID          `json:"lotId"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// ConsumptionResult describes how much of a request the lots could cover.
// A shortfall is a result, not an error.
type ConsumptionResult struct {
	IngredientID string         `json:"ingredientId"`
	Requested    types.Quantity `json:"requested"`
	Consumed     types.Quantity `json:"consumed"`
	Shortfall    types.Quantity `json:"shortfall"`
	Satisfied    bool           `json:"satisfied"`

	// Cost is the FIFO cost of what was consumed.
	Cost   types.Money `json:"cost"`
	Slices []LotSlice  `json:"slices,omitempty"`
}

// Engine consumes lots oldest-first. It does no locking: callers serialize
// calls per ingredient.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates a consumption engine over repo.
func NewEngine(repo Repository, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{repo: repo, now: now}
}

// Consume walks open lots in purchase order, decrementing each by what it can
// give and writing one "out" movement per lot touched. Whatever is left when
// lots run out is written as a shortfall movement.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (ConsumptionResult, error) {
	result := ConsumptionResult{
		IngredientID: req.IngredientID,
		Requested:    req.Quantity,
		Consumed:     types.Zero(),
		Shortfall:    types.Zero(),
		Cost:         types.Zero(),
		Satisfied:    true,
	}
	if !req.Quantity.IsPositive() {
		return result, nil
	}

	lots, err := e.repo.QueryLotsByIngredient(ctx, req.IngredientID, true)
	if err != nil {
		return result, fmt.Errorf("query lots: %w", err)
	}
	sort.SliceStable(lots, func(i, j int) bool { return lots[i].before(&lots[j]) })

	need := req.Quantity
	for i := range lots {
		if !need.IsPositive() {
			break
		}
		lot := &lots[i]
		if !lot.IsOpen() {
			continue
		}

		take := types.Min(lot.Remaining, need)
		remaining := lot.Remaining.Sub(take)
		if err := e.repo.UpdateLotRemaining(ctx, lot.ID, remaining); err != nil {
			return result, fmt.Errorf("update lot %s: %w", lot.ID, err)
		}
		lot.Remaining = remaining

		lotID := lot.ID
		if err := e.repo.AppendMovement(ctx, e.movement(ctx, req, take, req.Reason, &lotID, false)); err != nil {
			return result, fmt.Errorf("append movement: %w", err)
		}

		need = need.Sub(take)
		result.Consumed = result.Consumed.Add(take)
		result.Cost = result.Cost.Add(take.Mul(lot.UnitPrice))
		result.Slices = append(result.Slices, LotSlice{LotID: lot.ID, Quantity: take, UnitPrice: lot.UnitPrice})
	}

	if need.IsPositive() {
		m := e.movement(ctx, req, need, req.Reason+ShortfallSuffix, nil, true)
		if err := e.repo.AppendMovement(ctx, m); err != nil {
			return result, fmt.Errorf("append shortfall movement: %w", err)
		}
		result.Shortfall = need
		result.Satisfied = false
	}

	return result, nil
}

func (e *Engine) movement(ctx context.Context, req ConsumeRequest, qty types.Quantity, reason string, lotID *id.ID, shortfall bool) *StockMovement {
	return &StockMovement{
		ID:           id.New(),
		IngredientID: req.IngredientID,
		Direction:    DirectionOut,
		Quantity:     qty,
		CreatedAt:    e.now().UTC(),
		Reason:       reason,
		OrderRef:     optional(req.OrderRef),
		ProductRef:   optional(req.ProductRef),
		LotID:        lotID,
		Shortfall:    shortfall,
		Note:         req.Note,
		PerformedBy:  appctx.GetActor(ctx),
	}
}
