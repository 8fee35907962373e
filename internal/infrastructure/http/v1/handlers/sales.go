package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pantry/internal/core/apperror"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/http/v1/dto"
	"pantry/internal/infrastructure/http/v1/middleware"
	"pantry/pkg/logger"
)

// SalesHandler consumes stock for sold orders.
type SalesHandler struct {
	*BaseHandler
	ledger *ledger.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, svc *ledger.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, ledger: svc}
}

// ConsumeForSale handles POST /sales
//
// Shortfalls are part of a 200 response. When some ingredients hit a storage
// error the movements already written stay, and the 500 answer is stored under
// the idempotency key: a retry replays it rather than consuming twice.
func (h *SalesHandler) ConsumeForSale(c *gin.Context) {
	var req dto.SaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := h.ledger.ConsumeForSale(c.Request.Context(), req.OrderID, req.Items)
	if err != nil && (sale == nil || !sale.Partial()) {
		h.Error(c, err)
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "sale partially applied",
			"order_id", sale.OrderID,
			"failed", sale.Failed,
			"error", err,
		)
		body := dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "sale partially applied",
			Details: map[string]any{
				"request_id": c.GetString("request_id"),
				"sale":       dto.FromSale(sale),
			},
		}
		middleware.CompleteIdempotency(c, http.StatusInternalServerError, "application/json", body)
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	h.OK(c, dto.FromSale(sale))
}
