package handlers

import (
	"github.com/gin-gonic/gin"

	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/http/v1/dto"
)

// CatalogHandler maintains ingredients, recipe usages and products.
type CatalogHandler struct {
	*BaseHandler
	catalog *catalog.Service
	ledger  *ledger.Service
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, cat *catalog.Service, led *ledger.Service) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, catalog: cat, ledger: led}
}

// ListIngredients handles GET /ingredients
func (h *CatalogHandler) ListIngredients(c *gin.Context) {
	items, err := h.catalog.Repo().ListIngredients(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items))
}

// GetIngredient handles GET /ingredients/:id
func (h *CatalogHandler) GetIngredient(c *gin.Context) {
	ing, err := h.catalog.Repo().GetIngredient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ing)
}

// CreateIngredient handles POST /ingredients
func (h *CatalogHandler) CreateIngredient(c *gin.Context) {
	var req dto.CreateIngredientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ing := req.ToIngredient()
	if err := h.catalog.CreateIngredient(c.Request.Context(), ing); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ing)
}

// DeleteIngredient handles DELETE /ingredients/:id
func (h *CatalogHandler) DeleteIngredient(c *gin.Context) {
	if err := h.ledger.DeleteIngredient(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateUsage handles POST /usages
func (h *CatalogHandler) CreateUsage(c *gin.Context) {
	var req dto.CreateUsageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	u := req.ToUsage()
	if err := h.catalog.CreateUsage(c.Request.Context(), u); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, u)
}

// GetProduct handles GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Repo().GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// CreateProduct handles POST /products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToProduct()
	if err := h.catalog.CreateProduct(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}
