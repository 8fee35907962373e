package dto

import (
	"time"

	"pantry/internal/core/types"
	"pantry/internal/domain/ledger"
)

// --- Requests ---

// RecordPurchaseRequest records a received lot.
type RecordPurchaseRequest struct {
	IngredientID string         `json:"ingredientId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	TotalPrice   types.Money    `json:"totalPrice"`
	// Unit defaults to the ingredient's purchase unit.
	Unit        string     `json:"unit"`
	Supplier    string     `json:"supplier"`
	PurchasedAt *time.Time `json:"purchasedAt"`
}

// ToPurchase converts to the domain request.
func (r *RecordPurchaseRequest) ToPurchase() ledger.Purchase {
	p := ledger.Purchase{
		IngredientID: r.IngredientID,
		Quantity:     r.Quantity,
		TotalPrice:   r.TotalPrice,
		Unit:         r.Unit,
		Supplier:     r.Supplier,
	}
	if r.PurchasedAt != nil {
		p.PurchasedAt = *r.PurchasedAt
	}
	return p
}

// ConsumeRequest takes stock out for waste or a correction.
type ConsumeRequest struct {
	Quantity types.Quantity `json:"quantity"`
	Reason   string         `json:"reason" binding:"omitempty,oneof=waste adjustment"`
	Note     string         `json:"note"`
}

// SaleRequest consumes ingredients for a sold order.
type SaleRequest struct {
	OrderID string            `json:"orderId" binding:"required"`
	Items   []ledger.SaleItem `json:"items" binding:"required,min=1"`
}

// MovementListFilter is the query of the movement history.
type MovementListFilter struct {
	OrderRef string `form:"orderRef"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ToFilter converts to the domain filter.
func (f *MovementListFilter) ToFilter() ledger.MovementFilter {
	out := ledger.MovementFilter{Limit: f.Limit}
	if f.OrderRef != "" {
		ref := f.OrderRef
		out.OrderRef = &ref
	}
	return out
}

// --- Responses ---

// StockResponse is the stock position of one ingredient.
type StockResponse struct {
	IngredientID string         `json:"ingredientId"`
	Quantity     types.Quantity `json:"quantity"`
	Value        types.Money    `json:"value"`
}

// LotResponse represents a stock lot in API responses.
type LotResponse struct {
	ID           string         `json:"id"`
	IngredientID string         `json:"ingredientId"`
	Purchased    types.Quantity `json:"purchased"`
	Remaining    types.Quantity `json:"remaining"`
	UnitPrice    types.Money    `json:"unitPrice"`
	PurchasedAt  time.Time      `json:"purchasedAt"`
	Supplier     string         `json:"supplier,omitempty"`
}

// FromLot converts a lot to its response DTO.
func FromLot(l *ledger.StockLot) LotResponse {
	resp := LotResponse{
		ID:           l.ID.String(),
		IngredientID: l.IngredientID,
		Purchased:    l.Purchased,
		Remaining:    l.Remaining,
		UnitPrice:    l.UnitPrice,
		PurchasedAt:  l.PurchasedAt,
	}
	if l.Supplier != nil {
		resp.Supplier = *l.Supplier
	}
	return resp
}

// FromLots converts a lot list.
func FromLots(lots []ledger.StockLot) []LotResponse {
	out := make([]LotResponse, len(lots))
	for i := range lots {
		out[i] = FromLot(&lots[i])
	}
	return out
}

// MovementResponse represents a stock movement in API responses.
type MovementResponse struct {
	ID           string         `json:"id"`
	IngredientID string         `json:"ingredientId"`
	Direction    string         `json:"direction"`
	Quantity     types.Quantity `json:"quantity"`
	CreatedAt    time.Time      `json:"createdAt"`
	Reason       string         `json:"reason"`
	OrderRef     *string        `json:"orderRef,omitempty"`
	ProductRef   *string        `json:"productRef,omitempty"`
	LotID        *string        `json:"lotId,omitempty"`
	Shortfall    bool           `json:"shortfall"`
	Note         string         `json:"note,omitempty"`
	PerformedBy  string         `json:"performedBy,omitempty"`
}

// FromMovements converts movements to response DTOs.
func FromMovements(ms []ledger.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i, m := range ms {
		out[i] = MovementResponse{
			ID:           m.ID.String(),
			IngredientID: m.IngredientID,
			Direction:    string(m.Direction),
			Quantity:     m.Quantity,
			CreatedAt:    m.CreatedAt,
			Reason:       m.Reason,
			OrderRef:     m.OrderRef,
			ProductRef:   m.ProductRef,
			Shortfall:    m.Shortfall,
			Note:         m.Note,
			PerformedBy:  m.PerformedBy,
		}
		if m.LotID != nil {
			s := m.LotID.String()
			out[i].LotID = &s
		}
	}
	return out
}

// SaleResponse is the aggregated outcome of a sale.
type SaleResponse struct {
	*ledger.SaleConsumption
	Satisfied bool        `json:"satisfied"`
	Cost      types.Money `json:"cost"`
}

// FromSale converts the sale result.
func FromSale(s *ledger.SaleConsumption) SaleResponse {
	if s.Outcomes == nil {
		s.Outcomes = []ledger.IngredientOutcome{}
	}
	return SaleResponse{SaleConsumption: s, Satisfied: s.Satisfied(), Cost: s.Cost()}
}
