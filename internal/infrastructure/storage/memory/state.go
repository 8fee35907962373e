package memory

import (
	"sort"

	"pantry/internal/core/id"
	"pantry/internal/domain/catalog"
	"pantry/internal/domain/ledger"
)

// State is a point-in-time copy of both stores.
type State struct {
	Seq         int64                  `json:"seq"`
	Ingredients []catalog.Ingredient   `json:"ingredients"`
	Usages      []catalog.RecipeUsage  `json:"usages"`
	Products    []productRow           `json:"products"`
	Lots        []ledger.StockLot      `json:"lots"`
	Movements   []ledger.StockMovement `json:"movements"`
}

// Export copies the stores into a State. Lots keep their Seq order.
func Export(cat *CatalogStore, led *LedgerStore) *State {
	st := &State{}

	cat.mu.RLock()
	for _, ing := range cat.ingredients {
		st.Ingredients = append(st.Ingredients, ing)
	}
	for _, u := range cat.usages {
		st.Usages = append(st.Usages, u)
	}
	for _, p := range cat.products {
		st.Products = append(st.Products, productRow{ID: p.ID, Name: p.Name, UsageIDs: append([]string(nil), p.UsageIDs...)})
	}
	cat.mu.RUnlock()

	sort.Slice(st.Ingredients, func(i, j int) bool { return st.Ingredients[i].ID < st.Ingredients[j].ID })
	sort.Slice(st.Usages, func(i, j int) bool { return st.Usages[i].ID < st.Usages[j].ID })
	sort.Slice(st.Products, func(i, j int) bool { return st.Products[i].ID < st.Products[j].ID })

	led.mu.RLock()
	st.Seq = led.seq
	for _, lot := range led.lots {
		st.Lots = append(st.Lots, *lot)
	}
	st.Movements = append(st.Movements, led.movements...)
	led.mu.RUnlock()

	sort.Slice(st.Lots, func(i, j int) bool { return st.Lots[i].Seq < st.Lots[j].Seq })
	return st
}

// Restore replaces the contents of both stores with st.
func Restore(st *State, cat *CatalogStore, led *LedgerStore) {
	cat.mu.Lock()
	cat.ingredients = make(map[string]catalog.Ingredient, len(st.Ingredients))
	for _, ing := range st.Ingredients {
		cat.ingredients[ing.ID] = ing
	}
	cat.usages = make(map[string]catalog.RecipeUsage, len(st.Usages))
	for _, u := range st.Usages {
		cat.usages[u.ID] = u
	}
	cat.products = make(map[string]productRow, len(st.Products))
	for _, p := range st.Products {
		cat.products[p.ID] = p
	}
	cat.mu.Unlock()

	led.mu.Lock()
	led.seq = st.Seq
	led.lots = make(map[id.ID]*ledger.StockLot, len(st.Lots))
	led.byIng = make(map[string][]id.ID)
	for i := range st.Lots {
		lot := st.Lots[i]
		led.lots[lot.ID] = &lot
		led.byIng[lot.IngredientID] = append(led.byIng[lot.IngredientID], lot.ID)
		if lot.Seq > led.seq {
			led.seq = lot.Seq
		}
	}
	led.movements = append([]ledger.StockMovement(nil), st.Movements...)
	led.mu.Unlock()
}
