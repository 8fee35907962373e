package memory

import (
	"context"
	"sort"
	"sync"

	"pantry/internal/core/apperror"
	"pantry/internal/core/id"
	"pantry/internal/core/types"
	"pantry/internal/domain/ledger"
)

// LedgerStore implements ledger.Repository.
type LedgerStore struct {
	mu        sync.RWMutex
	seq       int64
	lots      map[id.ID]*ledger.StockLot
	byIng     map[string][]id.ID
	movements []ledger.StockMovement
}

// NewLedgerStore creates an empty ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		lots:  make(map[id.ID]*ledger.StockLot),
		byIng: make(map[string][]id.ID),
	}
}

func (s *LedgerStore) SaveLot(ctx context.Context, lot *ledger.StockLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lots[lot.ID]; ok {
		return apperror.NewDuplicate("lot", "id", lot.ID.String())
	}
	s.seq++
	lot.Seq = s.seq
	stored := *lot
	s.lots[lot.ID] = &stored
	s.byIng[lot.IngredientID] = append(s.byIng[lot.IngredientID], lot.ID)
	return nil
}

func (s *LedgerStore) UpdateLotRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return apperror.NewNotFound("lot", lotID.String())
	}
	if remaining.IsNegative() || remaining.GreaterThan(lot.Remaining) {
		return apperror.NewConflict("lot remaining can only decrease and never below zero").
			WithDetail("lot_id", lotID.String()).
			WithDetail("current", lot.Remaining.String()).
			WithDetail("requested", remaining.String())
	}
	lot.Remaining = remaining
	return nil
}

func (s *LedgerStore) AppendMovement(ctx context.Context, movement *ledger.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, *movement)
	return nil
}

func (s *LedgerStore) QueryLotsByIngredient(ctx context.Context, ingredientID string, openOnly bool) ([]ledger.StockLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byIng[ingredientID]
	out := make([]ledger.StockLot, 0, len(ids))
	for _, lotID := range ids {
		lot := s.lots[lotID]
		if openOnly && !lot.IsOpen() {
			continue
		}
		out = append(out, *lot)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.Before(out[j].PurchasedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (s *LedgerStore) ListMovements(ctx context.Context, ingredientID string, filter ledger.MovementFilter) ([]ledger.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []ledger.StockMovement{}
	for _, m := range s.movements {
		if m.IngredientID != ingredientID {
			continue
		}
		if filter.OrderRef != nil && (m.OrderRef == nil || *m.OrderRef != *filter.OrderRef) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

var _ ledger.Repository = (*LedgerStore)(nil)
