package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pantry/internal/core/apperror"
	appctx "pantry/internal/core/context"
	"pantry/internal/core/id"
	"pantry/internal/core/tx"
	"pantry/internal/core/types"
	"pantry/internal/domain/alerts"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/units"
	"pantry/pkg/logger"
)

var tracer = otel.Tracer("pantry/ledger")

// Config holds optional collaborators of the Service.
type Config struct {
	// TxManager wraps every locked mutation. Defaults to tx.Nop.
	TxManager tx.Manager

	// LowStockRule decides which ingredients LowStock reports.
	// Nil means "stock <= threshold" without going through CEL.
	LowStockRule *alerts.Rule

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service is the public face of the ledger. It owns lot and movement state:
// every mutation goes through RecordPurchase, Consume or ConsumeForSale.
type Service struct {
	repo     Repository
	catalog  catalog.Repository
	resolver *Resolver
	engine   *Engine
	locks    *lockSet
	txm      tx.Manager
	rule     *alerts.Rule
	now      func() time.Time
}

// NewService creates a ledger service.
func NewService(repo Repository, cat catalog.Repository, cfg Config) *Service {
	if cfg.TxManager == nil {
		cfg.TxManager = tx.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		repo:     repo,
		catalog:  cat,
		resolver: NewResolver(cat),
		engine:   NewEngine(repo, cfg.Clock),
		locks:    newLockSet(),
		txm:      cfg.TxManager,
		rule:     cfg.LowStockRule,
		now:      cfg.Clock,
	}
}

// Resolver returns the recipe resolver used by the service.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Purchase describes a stock entry.
type Purchase struct {
	IngredientID string
	Quantity     types.Quantity
	TotalPrice   types.Money

	// Unit of Quantity. Empty means the ingredient's purchase unit.
	Unit string

	Supplier    string
	PurchasedAt time.Time
}

// RecordPurchase creates a lot, logs an "in" movement and sets the
// ingredient's displayed price to this purchase's unit price.
func (s *Service) RecordPurchase(ctx context.Context, p Purchase) (*StockLot, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordPurchase", trace.WithAttributes(
		attribute.String("ingredient.id", p.IngredientID),
	))
	defer span.End()

	if !p.Quantity.IsPositive() {
		return nil, apperror.NewInvalidArgument("quantity", "quantity must be positive").
			WithDetail("value", p.Quantity.String())
	}
	if !p.TotalPrice.IsPositive() {
		return nil, apperror.NewInvalidArgument("totalPrice", "total price must be positive").
			WithDetail("value", p.TotalPrice.String())
	}

	// The ingredient is looked up under its lock so a concurrent delete cannot
	// slip in between the lookup and the new lot.
	unlock := s.locks.lock(p.IngredientID)
	defer unlock()

	var lot *StockLot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockStore(ctx, p.IngredientID); err != nil {
			return err
		}
		ing, err := s.catalog.GetIngredient(ctx, p.IngredientID)
		if err != nil {
			return err
		}

		qty := p.Quantity
		if p.Unit != "" {
			converted, ok := units.Convert(p.Quantity, p.Unit, ing.PurchaseUnit)
			if !ok {
				logger.Warn(ctx, "no unit conversion rule for purchase, using quantity as is",
					"ingredient_id", ing.ID,
					"from_unit", p.Unit,
					"to_unit", ing.PurchaseUnit,
				)
			}
			qty = converted
		}

		purchasedAt := p.PurchasedAt
		if purchasedAt.IsZero() {
			purchasedAt = s.now()
		}

		lot = &StockLot{
			ID:           id.New(),
			IngredientID: ing.ID,
			Purchased:    qty,
			Remaining:    qty,
			UnitPrice:    p.TotalPrice.Div(qty),
			PurchasedAt:  purchasedAt.UTC(),
			Supplier:     optional(p.Supplier),
		}
		if err := s.repo.SaveLot(ctx, lot); err != nil {
			return fmt.Errorf("save lot: %w", err)
		}
		lotID := lot.ID
		m := &StockMovement{
			ID:           id.New(),
			IngredientID: ing.ID,
			Direction:    DirectionIn,
			Quantity:     qty,
			CreatedAt:    s.now().UTC(),
			Reason:       ReasonPurchase,
			LotID:        &lotID,
			Note:         p.Supplier,
			PerformedBy:  appctx.GetActor(ctx),
		}
		if err := s.repo.AppendMovement(ctx, m); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
		if err := s.catalog.SetUnitPrice(ctx, ing.ID, lot.UnitPrice, s.now().UTC()); err != nil {
			return fmt.Errorf("set unit price: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase recorded",
		"ingredient_id", lot.IngredientID,
		"lot_id", lot.ID,
		"quantity", lot.Purchased.String(),
		"unit_price", lot.UnitPrice.String(),
	)
	return lot, nil
}

// CurrentStock is the sum of remaining quantities. Unknown ingredients have 0.
func (s *Service) CurrentStock(ctx context.Context, ingredientID string) (types.Quantity, error) {
	lots, err := s.openLots(ctx, ingredientID)
	if err != nil {
		return types.Zero(), err
	}
	total := types.Zero()
	for i := range lots {
		total = total.Add(lots[i].Remaining)
	}
	return total, nil
}

// StockValue values remaining stock at each lot's own price. Unknown ingredients are worth 0.
func (s *Service) StockValue(ctx context.Context, ingredientID string) (types.Money, error) {
	lots, err := s.openLots(ctx, ingredientID)
	if err != nil {
		return types.Zero(), err
	}
	total := types.Zero()
	for i := range lots {
		total = total.Add(lots[i].RemainingValue())
	}
	return total, nil
}

func (s *Service) openLots(ctx context.Context, ingredientID string) ([]StockLot, error) {
	unlock := s.locks.rlock(ingredientID)
	defer unlock()

	lots, err := s.repo.QueryLotsByIngredient(ctx, ingredientID, true)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	return lots, nil
}

// CheckSufficiency tells whether current stock covers quantity portions of a
// product. Nothing is mutated.
func (s *Service) CheckSufficiency(ctx context.Context, productID string, quantity types.Quantity) (*Sufficiency, error) {
	ctx, span := tracer.Start(ctx, "ledger.CheckSufficiency", trace.WithAttributes(
		attribute.String("product.id", productID),
	))
	defer span.End()

	res, err := s.resolver.Resolve(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	out := &Sufficiency{
		ProductID:  productID,
		Quantity:   quantity,
		Sufficient: true,
		Shortages:  []Shortage{},
		Unresolved: res.Unresolved,
	}
	for _, req := range Totals(res.Requirements) {
		available, err := s.CurrentStock(ctx, req.IngredientID)
		if err != nil {
			return nil, err
		}
		if available.LessThan(req.Quantity) {
			out.Sufficient = false
			out.Shortages = append(out.Shortages, Shortage{
				IngredientID: req.IngredientID,
				Required:     req.Quantity,
				Available:    available,
			})
		}
	}
	return out, nil
}

// ConsumeForSale takes the ingredients of every order line out of stock.
//
// All lines are resolved before anything is consumed, so an unknown product
// aborts the sale untouched. After that each ingredient is consumed on its own:
// a shortfall on one does not undo the others, and the request still ends
// completed with the shortages listed.
func (s *Service) ConsumeForSale(ctx context.Context, orderID string, items []SaleItem) (*SaleConsumption, error) {
	ctx, span := tracer.Start(ctx, "ledger.ConsumeForSale", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("order.items", len(items)),
	))
	defer span.End()

	sale := &SaleConsumption{OrderID: orderID, State: SaleRequested, Outcomes: []IngredientOutcome{}}

	if orderID == "" {
		return nil, apperror.NewInvalidArgument("orderId", "order id is required")
	}
	for i, item := range items {
		if item.ProductID == "" {
			return nil, apperror.NewInvalidArgument("productId", fmt.Sprintf("item %d: product id is required", i))
		}
		if !item.Quantity.IsPositive() {
			return nil, apperror.NewInvalidArgument("quantity", fmt.Sprintf("item %d: quantity must be positive", i)).
				WithDetail("product_id", item.ProductID)
		}
	}

	sale.State = SaleResolving
	resolutions := make([]*Resolution, 0, len(items))
	for _, item := range items {
		res, err := s.resolver.Resolve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
		sale.Unresolved = append(sale.Unresolved, res.Unresolved...)
	}

	// Consumption is not abortable once started.
	ctx = context.WithoutCancel(ctx)

	sale.State = SaleConsuming
	outcomes := newOutcomeSet()
	var errs []error
	for _, res := range resolutions {
		for _, req := range res.Requirements {
			result, err := s.consume(ctx, ConsumeRequest{
				IngredientID: req.IngredientID,
				Quantity:     req.Quantity,
				Reason:       ReasonSale,
				OrderRef:     orderID,
				ProductRef:   req.ProductID,
			}, false)
			if err != nil {
				errs = append(errs, fmt.Errorf("consume %s: %w", req.IngredientID, err))
				if !slices.Contains(sale.Failed, req.IngredientID) {
					sale.Failed = append(sale.Failed, req.IngredientID)
				}
				continue
			}
			outcomes.add(result)
		}
	}
	sale.Outcomes = outcomes.list
	sale.State = SaleCompleted

	for _, o := range sale.Shortages() {
		logger.Warn(ctx, "sale consumed more than available stock",
			"code", apperror.CodeStockShortfall,
			"order_id", orderID,
			"ingredient_id", o.IngredientID,
			"requested", o.Requested.String(),
			"shortfall", o.Shortfall.String(),
		)
	}
	logger.Info(ctx, "sale consumption completed",
		"order_id", orderID,
		"ingredients", len(sale.Outcomes),
		"unresolved", len(sale.Unresolved),
		"satisfied", sale.Satisfied(),
	)

	if len(errs) > 0 {
		return sale, errors.Join(errs...)
	}
	return sale, nil
}

// Consume takes quantity of an ingredient out of stock outside of a sale
// (waste, breakage, stock count corrections).
func (s *Service) Consume(ctx context.Context, ingredientID string, quantity types.Quantity, reason, note string) (ConsumptionResult, error) {
	if !quantity.IsPositive() {
		return ConsumptionResult{}, apperror.NewInvalidArgument("quantity", "quantity must be positive")
	}
	if reason == "" {
		reason = ReasonAdjustment
	}

	result, err := s.consume(ctx, ConsumeRequest{
		IngredientID: ingredientID,
		Quantity:     quantity,
		Reason:       reason,
		Note:         note,
	}, true)
	if err != nil {
		return result, err
	}
	if !result.Satisfied {
		logger.Warn(ctx, "consumption exceeded available stock",
			"code", apperror.CodeStockShortfall,
			"ingredient_id", ingredientID,
			"reason", reason,
			"shortfall", result.Shortfall.String(),
		)
	}
	return result, nil
}

// consume runs the engine under the ingredient's write lock and one transaction.
// With known set, the ingredient must exist in the catalog.
func (s *Service) consume(ctx context.Context, req ConsumeRequest, known bool) (ConsumptionResult, error) {
	unlock := s.locks.lock(req.IngredientID)
	defer unlock()

	var result ConsumptionResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockStore(ctx, req.IngredientID); err != nil {
			return err
		}
		if known {
			if _, err := s.catalog.GetIngredient(ctx, req.IngredientID); err != nil {
				return err
			}
		}
		var err error
		result, err = s.engine.Consume(ctx, req)
		return err
	})
	return result, err
}

// lockStore extends the per-ingredient lock to the store when it supports
// cross-process locking.
func (s *Service) lockStore(ctx context.Context, ingredientID string) error {
	if l, ok := s.txm.(tx.Locker); ok {
		return l.LockKey(ctx, "ingredient:"+ingredientID)
	}
	return nil
}

// DeleteIngredient removes an ingredient from the catalog. It is refused while
// lots still hold stock or recipe usages point at the ingredient.
func (s *Service) DeleteIngredient(ctx context.Context, ingredientID string) error {
	unlock := s.locks.lock(ingredientID)
	defer unlock()

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockStore(ctx, ingredientID); err != nil {
			return err
		}
		if _, err := s.catalog.GetIngredient(ctx, ingredientID); err != nil {
			return err
		}

		lots, err := s.repo.QueryLotsByIngredient(ctx, ingredientID, true)
		if err != nil {
			return fmt.Errorf("query lots: %w", err)
		}
		if len(lots) > 0 {
			return apperror.NewConflict("ingredient still has stock").
				WithDetail("ingredient_id", ingredientID).
				WithDetail("open_lots", len(lots))
		}

		usages, err := s.catalog.UsagesByIngredient(ctx, ingredientID)
		if err != nil {
			return fmt.Errorf("query usages: %w", err)
		}
		if len(usages) > 0 {
			ids := make([]string, len(usages))
			for i, u := range usages {
				ids[i] = u.ID
			}
			return apperror.NewConflict("ingredient is referenced by recipes").
				WithDetail("ingredient_id", ingredientID).
				WithDetail("usages", ids)
		}

		if err := s.catalog.DeleteIngredient(ctx, ingredientID); err != nil {
			return fmt.Errorf("delete ingredient: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "ingredient deleted", "ingredient_id", ingredientID)
	return nil
}

// Lots returns every lot of an ingredient, depleted ones included.
func (s *Service) Lots(ctx context.Context, ingredientID string) ([]StockLot, error) {
	unlock := s.locks.rlock(ingredientID)
	defer unlock()
	return s.repo.QueryLotsByIngredient(ctx, ingredientID, false)
}

// Movements returns the movement trail of an ingredient.
func (s *Service) Movements(ctx context.Context, ingredientID string, filter MovementFilter) ([]StockMovement, error) {
	unlock := s.locks.rlock(ingredientID)
	defer unlock()
	return s.repo.ListMovements(ctx, ingredientID, filter)
}

// Reconcile checks that lot depletion and the movement trail agree.
func (s *Service) Reconcile(ctx context.Context, ingredientID string) (*Reconciliation, error) {
	unlock := s.locks.rlock(ingredientID)
	defer unlock()

	lots, err := s.repo.QueryLotsByIngredient(ctx, ingredientID, false)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	movements, err := s.repo.ListMovements(ctx, ingredientID, MovementFilter{})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	rec := &Reconciliation{
		IngredientID:   ingredientID,
		Purchased:      types.Zero(),
		Remaining:      types.Zero(),
		InTotal:        types.Zero(),
		OutTotal:       types.Zero(),
		ShortfallTotal: types.Zero(),
	}
	for i := range lots {
		rec.Purchased = rec.Purchased.Add(lots[i].Purchased)
		rec.Remaining = rec.Remaining.Add(lots[i].Remaining)
	}
	rec.Consumed = rec.Purchased.Sub(rec.Remaining)

	for i := range movements {
		m := &movements[i]
		switch m.Direction {
		case DirectionIn:
			rec.InTotal = rec.InTotal.Add(m.Quantity)
		case DirectionOut:
			rec.OutTotal = rec.OutTotal.Add(m.Quantity)
			if m.Shortfall {
				rec.ShortfallTotal = rec.ShortfallTotal.Add(m.Quantity)
			}
		}
	}

	rec.Balanced = rec.Consumed.Equal(rec.OutTotal.Sub(rec.ShortfallTotal)) && rec.InTotal.Equal(rec.Purchased)
	if !rec.Balanced {
		logger.Error(ctx, "ledger out of balance",
			"ingredient_id", ingredientID,
			"consumed", rec.Consumed.String(),
			"out_total", rec.OutTotal.String(),
			"shortfall_total", rec.ShortfallTotal.String(),
		)
	}
	return rec, nil
}

// Valuation lists the stock position of every catalog ingredient.
func (s *Service) Valuation(ctx context.Context) (*Valuation, error) {
	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}
	v := &Valuation{Levels: levels, Total: types.Zero()}
	for _, l := range levels {
		v.Total = v.Total.Add(l.Value)
	}
	return v, nil
}

// LowStock returns ingredients whose stock is at or below threshold, or that
// match the configured alert rule.
func (s *Service) LowStock(ctx context.Context, threshold types.Quantity) ([]StockLevel, error) {
	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}

	out := []StockLevel{}
	for _, l := range levels {
		low := l.Quantity.LessThanOrEqual(threshold)
		if s.rule != nil {
			low, err = s.rule.Match(alerts.Input{
				IngredientID: l.IngredientID,
				Stock:        l.Quantity.InexactFloat64(),
				Threshold:    threshold.InexactFloat64(),
				Category:     l.Category,
				Unit:         l.Unit,
			})
			if err != nil {
				return nil, fmt.Errorf("low stock rule for %s: %w", l.IngredientID, err)
			}
		}
		if low {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Service) levels(ctx context.Context) ([]StockLevel, error) {
	ingredients, err := s.catalog.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	levels := make([]StockLevel, 0, len(ingredients))
	for _, ing := range ingredients {
		lots, err := s.openLots(ctx, ing.ID)
		if err != nil {
			return nil, err
		}
		level := StockLevel{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Category:     ing.Category,
			Unit:         ing.PurchaseUnit,
			Quantity:     types.Zero(),
			Value:        types.Zero(),
			UnitPrice:    ing.UnitPrice,
		}
		for i := range lots {
			level.Quantity = level.Quantity.Add(lots[i].Remaining)
			level.Value = level.Value.Add(lots[i].RemainingValue())
		}
		levels = append(levels, level)
	}
	return levels, nil
}
