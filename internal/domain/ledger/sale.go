package ledger

import (
	"pantry/internal/core/types"
)

// SaleState is the lifecycle of a ConsumeForSale request. There is no failed
// state: shortfalls end in SaleCompleted with shortages attached.
type SaleState string

const (
	SaleRequested SaleState = "requested"
	SaleResolving SaleState = "resolving"
	SaleConsuming SaleState = "consuming"
	SaleCompleted SaleState = "completed"
)

// SaleItem is one order line.
type SaleItem struct {
	ProductID string         `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// IngredientOutcome aggregates every consumption of one ingredient within a sale.
type IngredientOutcome struct {
	IngredientID string         `json:"ingredientId"`
	Requested    types.Quantity `json:"requested"`
	Consumed     types.Quantity `json:"consumed"`
	Shortfall    types.Quantity `json:"shortfall"`
	Satisfied    bool           `json:"satisfied"`
	Cost         types.Money    `json:"cost"`
}

func (o *IngredientOutcome) add(r ConsumptionResult) {
	o.Requested = o.Requested.Add(r.Requested)
	o.Consumed = o.Consumed.Add(r.Consumed)
	o.Shortfall = o.Shortfall.Add(r.Shortfall)
	o.Cost = o.Cost.Add(r.Cost)
	o.Satisfied = o.Satisfied && r.Satisfied
}

// SaleConsumption is the result of ConsumeForSale.
type SaleConsumption struct {
	OrderID    string                  `json:"orderId"`
	State      SaleState               `json:"state"`
	Outcomes   []IngredientOutcome     `json:"outcomes"`
	Unresolved []UnresolvedRequirement `json:"unresolved,omitempty"`

	// Failed lists ingredients whose consumption hit a storage error.
	Failed []string `json:"failed,omitempty"`
}

// Partial reports whether some ingredients could not be consumed.
func (s *SaleConsumption) Partial() bool {
	return len(s.Failed) > 0
}

// Satisfied reports whether every ingredient was fully covered by stock.
func (s *SaleConsumption) Satisfied() bool {
	for _, o := range s.Outcomes {
		if !o.Satisfied {
			return false
		}
	}
	return true
}

// Shortages returns the outcomes with a shortfall.
func (s *SaleConsumption) Shortages() []IngredientOutcome {
	var out []IngredientOutcome
	for _, o := range s.Outcomes {
		if !o.Satisfied {
			out = append(out, o)
		}
	}
	return out
}

// Cost is the FIFO cost of everything consumed by the sale.
func (s *SaleConsumption) Cost() types.Money {
	costs := make([]types.Money, len(s.Outcomes))
	for i, o := range s.Outcomes {
		costs[i] = o.Cost
	}
	return types.Sum(costs...)
}

type outcomeSet struct {
	index map[string]int
	list  []IngredientOutcome
}

func newOutcomeSet() *outcomeSet {
	return &outcomeSet{index: make(map[string]int)}
}

func (s *outcomeSet) add(r ConsumptionResult) {
	i, ok := s.index[r.IngredientID]
	if !ok {
		i = len(s.list)
		s.index[r.IngredientID] = i
		s.list = append(s.list, IngredientOutcome{
			IngredientID: r.IngredientID,
			Requested:    types.Zero(),
			Consumed:     types.Zero(),
			Shortfall:    types.Zero(),
			Cost:         types.Zero(),
			Satisfied:    true,
		})
	}
	s.list[i].add(r)
}

// Shortage is an ingredient a sufficiency check found short.
type Shortage struct {
	IngredientID string         `json:"ingredientId"`
	Required     types.Quantity `json:"required"`
	Available    types.Quantity `json:"available"`
}

// Sufficiency is the result of CheckSufficiency.
type Sufficiency struct {
	ProductID  string                  `json:"productId"`
	Quantity   types.Quantity          `json:"quantity"`
	Sufficient bool                    `json:"sufficient"`
	Shortages  []Shortage              `json:"shortages"`
	Unresolved []UnresolvedRequirement `json:"unresolved,omitempty"`
}

// StockLevel is the stock position of one ingredient.
type StockLevel struct {
	IngredientID string         `json:"ingredientId"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Unit         string         `json:"unit"`
	Quantity     types.Quantity `json:"quantity"`
	Value        types.Money    `json:"value"`
	UnitPrice    types.Money    `json:"unitPrice"`
}

// Valuation lists every ingredient's stock valued at FIFO lot prices.
type Valuation struct {
	Levels []StockLevel `json:"levels"`
	Total  types.Money  `json:"total"`
}

// Reconciliation compares lot depletion with the movement trail.
// Balanced holds when Consumed == OutTotal - ShortfallTotal and InTotal == Purchased.
type Reconciliation struct {
	IngredientID   string         `json:"ingredientId"`
	Purchased      types.Quantity `json:"purchased"`
	Remaining      types.Quantity `json:"remaining"`
	Consumed       types.Quantity `json:"consumed"`
	InTotal        types.Quantity `json:"inTotal"`
	OutTotal       types.Quantity `json:"outTotal"`
	ShortfallTotal types.Quantity `json:"shortfallTotal"`
	Balanced       bool           `json:"balanced"`
}
