// Package ledger tracks purchased lots of base ingredients and consumes them
// oldest-first when products are sold, writing an append-only movement trail.
package ledger

import (
	"time"

	"pantry/internal/core/id"
	"pantry/internal/core/types"
)

// Direction of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Reason codes written on movements.
const (
	ReasonPurchase   = "purchase"
	ReasonSale       = "sale"
	ReasonWaste      = "waste"
	ReasonAdjustment = "adjustment"
)

// ShortfallSuffix is appended to the reason of the movement recording the
// part of a consumption that no lot could cover.
const ShortfallSuffix = " (stock insufficient)"

// StockLot is one purchase of a base ingredient, the unit of FIFO consumption.
// Lots are never deleted; Remaining only goes down.
type StockLot struct {
	ID id.ID `db:"id" json:"id"`

	// Seq is the insertion order assigned by the store. It breaks ties between
	// lots purchased at the same instant.
	Seq int64 `db:"seq" json:"seq"`

	IngredientID string         `db:"ingredient_id" json:"ingredientId"`
	Purchased    types.Quantity `db:"purchased" json:"purchased"`
	Remaining    types.Quantity `db:"remaining" json:"remaining"`

	// UnitPrice is total price / purchased quantity, per purchase unit.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	PurchasedAt time.Time `db:"purchased_at" json:"purchasedAt"`
	Supplier    *string   `db:"supplier" json:"supplier,omitempty"`
}

// Consumed returns how much has been taken from the lot so far.
func (l *StockLot) Consumed() types.Quantity {
	return l.Purchased.Sub(l.Remaining)
}

// RemainingValue values what is left at the lot's own purchase price.
func (l *StockLot) RemainingValue() types.Money {
	return l.Remaining.Mul(l.UnitPrice)
}

// IsOpen reports whether anything is left in the lot.
func (l *StockLot) IsOpen() bool {
	return l.Remaining.IsPositive()
}

// before orders lots for FIFO consumption.
func (l *StockLot) before(other *StockLot) bool {
	if !l.PurchasedAt.Equal(other.PurchasedAt) {
		return l.PurchasedAt.Before(other.PurchasedAt)
	}
	return l.Seq < other.Seq
}

// StockMovement is an immutable audit entry.
type StockMovement struct {
	ID           id.ID          `db:"id" json:"id"`
	IngredientID string         `db:"ingredient_id" json:"ingredientId"`
	Direction    Direction      `db:"direction" json:"direction"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	Reason       string         `db:"reason" json:"reason"`

	OrderRef   *string `db:"order_ref" json:"orderRef,omitempty"`
	ProductRef *string `db:"product_ref" json:"productRef,omitempty"`

	// LotID is set for purchases and for slices taken from a lot. Shortfall
	// movements have no lot.
	LotID *id.ID `db:"lot_id" json:"lotId,omitempty"`

	// Shortfall marks an "out" movement that did not reduce any lot.
	Shortfall bool `db:"shortfall" json:"shortfall"`

	Note        string `db:"note" json:"note,omitempty"`
	PerformedBy string `db:"performed_by" json:"performedBy,omitempty"`
}

// SignedQuantity is positive for "in" and negative for "out".
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
