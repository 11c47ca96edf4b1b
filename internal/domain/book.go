package domain

import (
	"sort"

	"mocktrading/pkg/quant"
)

// Level is one entry of a book refresh: the total resting size at a price.
type Level struct {
	Side     Side              `json:"side"`
	Price    quant.PriceMicros `json:"price"`
	Quantity quant.Qty         `json:"quantity"`
}

// LevelRef addresses a single (side, price) key for removal.
type LevelRef struct {
	Side  Side              `json:"side"`
	Price quant.PriceMicros `json:"price"`
}

// BookSnapshot is a detached copy of one symbol's book.
// Both maps are always non-nil.
type BookSnapshot struct {
	Bid map[quant.PriceMicros]quant.Qty `json:"bid"`
	Ask map[quant.PriceMicros]quant.Qty `json:"ask"`
}

// NewBookSnapshot returns a snapshot with empty sides.
func NewBookSnapshot() BookSnapshot {
	return BookSnapshot{
		Bid: make(map[quant.PriceMicros]quant.Qty),
		Ask: make(map[quant.PriceMicros]quant.Qty),
	}
}

// PriceLevel is a [price, quantity] row of a depth ladder.
type PriceLevel struct {
	Price    quant.PriceMicros `json:"price"`
	Quantity quant.Qty         `json:"quantity"`
}

// Depth is an ordered ladder for one symbol.
type Depth struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"` // Sorted high to low
	Asks   []PriceLevel `json:"asks"` // Sorted low to high
}

// LevelKey groups active orders in the aggregated view.
type LevelKey struct {
	Side  Side
	Price quant.PriceMicros
}

// ActiveLevel is the summed size of active orders at one key.
type ActiveLevel struct {
	Side  Side              `json:"side"`
	Price quant.PriceMicros `json:"price"`
	Size  quant.Qty         `json:"size"`
}

// ActiveLevels maps symbol -> key -> summed active size.
type ActiveLevels map[string]map[LevelKey]ActiveLevel

// At returns the levels for symbol at price, bids first.
func (a ActiveLevels) At(symbol string, price quant.PriceMicros) []ActiveLevel {
	var out []ActiveLevel
	for _, side := range []Side{SideBid, SideAsk} {
		if lvl, ok := a[symbol][LevelKey{Side: side, Price: price}]; ok {
			out = append(out, lvl)
		}
	}
	return out
}

// Sorted returns the symbol's levels ordered by price, then bid before ask.
func (a ActiveLevels) Sorted(symbol string) []ActiveLevel {
	out := make([]ActiveLevel, 0, len(a[symbol]))
	for _, lvl := range a[symbol] {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Side == SideBid && out[j].Side == SideAsk
	})
	return out
}
