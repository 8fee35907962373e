// Package v1 provides HTTP API version 1.
package v1

import (
	"context"

	"github.com/gin-gonic/gin"

	"pantry/internal/core/types"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	"pantry/internal/infrastructure/http/v1/handlers"
	"pantry/internal/infrastructure/http/v1/middleware"
	"pantry/internal/infrastructure/idempotency"
	"pantry/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Ledger  *ledger.Service
	Catalog *catalog.Service

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency replays retried POSTs carrying X-Idempotency-Key. Nil disables it.
	Idempotency idempotency.Store

	// Storage names the backing store in health output ("memory", "postgres").
	Storage string

	// Ready is the readiness check of the backing store.
	Ready func(ctx context.Context) error

	// LowStockThreshold is used when GET /alerts/low-stock has no threshold.
	LowStockThreshold types.Quantity

	// Mode is the gin mode; release when empty.
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Order matters: ErrorHandler sits outside Recovery so a recovered panic
	// still gets a JSON body.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())
	router.Use(middleware.Actor())

	healthHandler := handlers.NewHealthHandler(cfg.Storage, cfg.Ready)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	base := handlers.NewBaseHandler()
	inventory := handlers.NewInventoryHandler(base, cfg.Ledger, cfg.LowStockThreshold)
	sales := handlers.NewSalesHandler(base, cfg.Ledger)
	catalogs := handlers.NewCatalogHandler(base, cfg.Catalog, cfg.Ledger)

	api := router.Group("/api/v1")
	api.Use(middleware.Idempotency(cfg.Idempotency))
	{
		api.POST("/purchases", inventory.RecordPurchase)
		api.POST("/sales", sales.ConsumeForSale)
		api.GET("/valuation", inventory.Valuation)
		api.GET("/alerts/low-stock", inventory.LowStock)

		ingredients := api.Group("/ingredients")
		{
			ingredients.GET("", catalogs.ListIngredients)
			ingredients.POST("", catalogs.CreateIngredient)
			ingredients.GET("/:id", catalogs.GetIngredient)
			ingredients.DELETE("/:id", catalogs.DeleteIngredient)
			ingredients.GET("/:id/stock", inventory.Stock)
			ingredients.GET("/:id/lots", inventory.Lots)
			ingredients.GET("/:id/movements", inventory.Movements)
			ingredients.GET("/:id/reconciliation", inventory.Reconcile)
			ingredients.POST("/:id/consume", inventory.Consume)
		}

		api.POST("/usages", catalogs.CreateUsage)

		products := api.Group("/products")
		{
			products.POST("", catalogs.CreateProduct)
			products.GET("/:id", catalogs.GetProduct)
			products.GET("/:id/sufficiency", inventory.Sufficiency)
		}
	}

	return router
}
