package handlers

import (
	"github.com/gin-gonic/gin"

	"pantry/internal/core/types"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves stock entry, stock queries and ingredient history.
type InventoryHandler struct {
	*BaseHandler
	ledger           *ledger.Service
	defaultThreshold types.Quantity
}

// NewInventoryHandler creates a new inventory handler. defaultThreshold is
// used by the low-stock query when the request has none.
func NewInventoryHandler(base *BaseHandler, svc *ledger.Service, defaultThreshold types.Quantity) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, ledger: svc, defaultThreshold: defaultThreshold}
}

// RecordPurchase handles POST /purchases
func (h *InventoryHandler) RecordPurchase(c *gin.Context) {
	var req dto.RecordPurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lot, err := h.ledger.RecordPurchase(c.Request.Context(), req.ToPurchase())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromLot(lot))
}

// Stock handles GET /ingredients/:id/stock
func (h *InventoryHandler) Stock(c *gin.Context) {
	ctx := c.Request.Context()
	ingredientID := c.Param("id")

	qty, err := h.ledger.CurrentStock(ctx, ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	value, err := h.ledger.StockValue(ctx, ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StockResponse{IngredientID: ingredientID, Quantity: qty, Value: value})
}

// Lots handles GET /ingredients/:id/lots
func (h *InventoryHandler) Lots(c *gin.Context) {
	lots, err := h.ledger.Lots(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromLots(lots)))
}

// Movements handles GET /ingredients/:id/movements
func (h *InventoryHandler) Movements(c *gin.Context) {
	var filter dto.MovementListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	ms, err := h.ledger.Movements(c.Request.Context(), c.Param("id"), filter.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromMovements(ms)))
}

// Reconcile handles GET /ingredients/:id/reconciliation
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	rec, err := h.ledger.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Consume handles POST /ingredients/:id/consume
func (h *InventoryHandler) Consume(c *gin.Context) {
	var req dto.ConsumeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.ledger.Consume(c.Request.Context(), c.Param("id"), req.Quantity, req.Reason, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Sufficiency handles GET /products/:id/sufficiency?quantity=
func (h *InventoryHandler) Sufficiency(c *gin.Context) {
	qty, ok := h.QuantityQuery(c, "quantity", types.MustQuantity("1"))
	if !ok {
		return
	}

	res, err := h.ledger.CheckSufficiency(c.Request.Context(), c.Param("id"), qty)
	if err != nil {
		h.Error(c, err)
		return
	}
	if res.Shortages == nil {
		res.Shortages = []ledger.Shortage{}
	}
	h.OK(c, res)
}

// LowStock handles GET /alerts/low-stock?threshold=
func (h *InventoryHandler) LowStock(c *gin.Context) {
	threshold, ok := h.QuantityQuery(c, "threshold", h.defaultThreshold)
	if !ok {
		return
	}

	levels, err := h.ledger.LowStock(c.Request.Context(), threshold)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(levels))
}

// Valuation handles GET /valuation
func (h *InventoryHandler) Valuation(c *gin.Context) {
	v, err := h.ledger.Valuation(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	if v.Levels == nil {
		v.Levels = []ledger.StockLevel{}
	}
	h.OK(c, v)
}
