// Package main is the entry point for the pantry inventory API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pantry/internal/core/tx"
	"pantry/internal/domain/alerts"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
	v1 "pantry/internal/infrastructure/http/v1"
	"pantry/internal/infrastructure/idempotency"
	"pantry/internal/infrastructure/storage/memory"
	"pantry/internal/infrastructure/storage/postgres"
	"pantry/internal/infrastructure/storage/postgres/catalog_repo"
	"pantry/internal/infrastructure/storage/postgres/ledger_repo"
	"pantry/internal/infrastructure/storage/snapshot"
	"pantry/pkg/logger"
)

// stores is the storage backend selected by STORAGE.
type stores struct {
	ledger      ledger.Repository
	catalog     catalog.Repository
	txm         tx.Manager
	idempotency idempotency.Store
	ready       func(ctx context.Context) error
	close       func()
}

func main() {
	cfg := loadConfig()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting pantry server", "storage", cfg.Storage)

	var st *stores
	switch cfg.Storage {
	case "memory":
		st, err = openMemory(ctx, cfg)
	case "postgres":
		st, err = openPostgres(ctx, cfg)
	default:
		err = fmt.Errorf("unknown STORAGE %q (want memory or postgres)", cfg.Storage)
	}
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer st.close()

	if cfg.CatalogSeed != "" {
		if err := loadSeed(ctx, st.catalog, cfg.CatalogSeed); err != nil {
			log.Fatalw("failed to load catalog seed", "path", cfg.CatalogSeed, "error", err)
		}
	}

	var rule *alerts.Rule
	if cfg.LowStockRule != "" {
		if rule, err = alerts.Compile(cfg.LowStockRule); err != nil {
			log.Fatalw("invalid LOW_STOCK_RULE", "error", err)
		}
	}

	ledgerService := ledger.NewService(st.ledger, st.catalog, ledger.Config{
		TxManager:    st.txm,
		LowStockRule: rule,
	})
	catalogService := catalog.NewService(st.catalog)

	mode := gin.ReleaseMode
	if cfg.Env == "development" {
		mode = gin.DebugMode
	}
	router := v1.NewRouter(v1.RouterConfig{
		Ledger:            ledgerService,
		Catalog:           catalogService,
		Logger:            log,
		Idempotency:       st.idempotency,
		Storage:           cfg.Storage,
		Ready:             st.ready,
		LowStockThreshold: cfg.LowStockThreshold,
		Mode:              mode,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func openMemory(ctx context.Context, cfg Config) (*stores, error) {
	cat := memory.NewCatalogStore()
	led := memory.NewLedgerStore()
	st := &stores{
		ledger:      led,
		catalog:     cat,
		txm:         tx.Nop{},
		idempotency: idempotency.NewMemoryStore(cfg.IdempotencyTTL),
		close:       func() {},
	}
	if cfg.SnapshotPath == "" {
		logger.Warn(ctx, "SNAPSHOT_PATH not set, ledger is lost on restart")
		return st, nil
	}

	codec, err := snapshot.NewCodec()
	if err != nil {
		return nil, err
	}
	found, err := codec.Load(cfg.SnapshotPath, cat, led)
	if err != nil {
		codec.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	logger.Info(ctx, "snapshot loaded", "path", cfg.SnapshotPath, "found", found)

	st.close = func() {
		defer codec.Close()
		if err := codec.Save(cfg.SnapshotPath, cat, led); err != nil {
			logger.Error(ctx, "failed to save snapshot", "path", cfg.SnapshotPath, "error", err)
			return
		}
		logger.Info(ctx, "snapshot saved", "path", cfg.SnapshotPath)
	}
	return st, nil
}

func openPostgres(ctx context.Context, cfg Config) (*stores, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	txm := postgres.NewTxManager(pool)
	if err := postgres.EnsureSchema(ctx, txm); err != nil {
		pool.Close()
		return nil, err
	}
	pool.LogStats(ctx)

	return &stores{
		ledger:      ledger_repo.NewLedgerRepo(txm),
		catalog:     catalog_repo.NewCatalogRepo(txm),
		txm:         txm,
		idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		ready:       pool.Ping,
		close:       pool.Close,
	}, nil
}

func loadSeed(ctx context.Context, repo catalog.Repository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := catalog.LoadSeed(ctx, repo, f)
	if err != nil {
		return err
	}
	logger.Info(ctx, "catalog seed loaded",
		"ingredients", stats.Ingredients,
		"usages", stats.Usages,
		"products", stats.Products,
		"dangling_usages", stats.Dangling,
	)
	return nil
}
