package postgres

import (
	"context"
	"fmt"

	"pantry/pkg/logger"
)

// Table names shared by the repositories.
const (
	IngredientsTable   = "ingredients"
	UsagesTable        = "recipe_usages"
	ProductsTable      = "products"
	ProductUsagesTable = "product_usages"
	LotsTable          = "stock_lots"
	MovementsTable     = "stock_movements"
)

// schema is idempotent; EnsureSchema runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ingredients (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		purchase_unit TEXT NOT NULL,
		unit_price    NUMERIC NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_usages (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL DEFAULT '',
		base_ingredient_id   TEXT NOT NULL DEFAULT '',
		quantity_per_portion NUMERIC NOT NULL CHECK (quantity_per_portion > 0),
		unit                 TEXT NOT NULL,
		category             TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS recipe_usages_ingredient_idx ON recipe_usages (base_ingredient_id)`,
	`CREATE TABLE IF NOT EXISTS products (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS product_usages (
		product_id TEXT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		position   INT  NOT NULL,
		usage_id   TEXT NOT NULL REFERENCES recipe_usages (id),
		PRIMARY KEY (product_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_lots (
		id            UUID PRIMARY KEY,
		seq           BIGSERIAL UNIQUE,
		ingredient_id TEXT NOT NULL,
		purchased     NUMERIC NOT NULL CHECK (purchased > 0),
		remaining     NUMERIC NOT NULL CHECK (remaining >= 0 AND remaining <= purchased),
		unit_price    NUMERIC NOT NULL,
		purchased_at  TIMESTAMPTZ NOT NULL,
		supplier      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS stock_lots_fifo_idx ON stock_lots (ingredient_id, purchased_at, seq)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id            UUID PRIMARY KEY,
		seq           BIGSERIAL UNIQUE,
		ingredient_id TEXT NOT NULL,
		direction     TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		quantity      NUMERIC NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		reason        TEXT NOT NULL,
		order_ref     TEXT,
		product_ref   TEXT,
		lot_id        UUID REFERENCES stock_lots (id),
		shortfall     BOOLEAN NOT NULL DEFAULT false,
		note          TEXT NOT NULL DEFAULT '',
		performed_by  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_ingredient_idx ON stock_movements (ingredient_id, seq)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_order_idx ON stock_movements (order_ref) WHERE order_ref IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS sys_idempotency (
		idempotency_key       TEXT PRIMARY KEY,
		operation             TEXT NOT NULL,
		status                TEXT NOT NULL,
		request_hash          TEXT NOT NULL,
		response              BYTEA,
		response_status       INT  NOT NULL DEFAULT 0,
		response_content_type TEXT NOT NULL DEFAULT '',
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL,
		expires_at            TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, txm *TxManager) error {
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for _, stmt := range schema {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		logger.Info(ctx, "database schema ensured", "statements", len(schema))
		return nil
	})
}
