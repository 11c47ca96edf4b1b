package orders

import (
	"fmt"

	"mocktrading/internal/domain"
	"mocktrading/pkg/quant"
)

// Mode selects how active orders are grouped.
type Mode int

const (
	// KeyBySide groups by (symbol, side, price). Opposite sides at one price stay apart.
	KeyBySide Mode = iota
	// LegacyLastSide groups by (symbol, price) and labels the group with the side of
	// the last order scanned, in insertion order.
	LegacyLastSide
)

func (m Mode) String() string {
	switch m {
	case KeyBySide:
		return "key_by_side"
	case LegacyLastSide:
		return "legacy_last_side"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Aggregator derives the active-size view from a Store on every call. Nothing is cached.
type Aggregator struct {
	store *Store
	mode  Mode
}

// NewAggregator creates an aggregator reading from store.
func NewAggregator(store *Store, mode Mode) *Aggregator {
	return &Aggregator{store: store, mode: mode}
}

// Mode returns the grouping mode.
func (a *Aggregator) Mode() Mode {
	return a.mode
}

// ActiveLevels sums the size of active orders. Every symbol holding any order,
// active or not, has an entry.
func (a *Aggregator) ActiveLevels() domain.ActiveLevels {
	if a.mode == LegacyLastSide {
		return a.legacyLevels()
	}

	out := make(domain.ActiveLevels)
	a.store.Each(func(o domain.Order) bool {
		levels := symbolLevels(out, o.Symbol)
		if !o.Active {
			return true
		}
		key := domain.LevelKey{Side: o.Side, Price: o.Price}
		lvl := levels[key]
		lvl.Side = o.Side
		lvl.Price = o.Price
		lvl.Size += o.Size
		levels[key] = lvl
		return true
	})
	return out
}

func (a *Aggregator) legacyLevels() domain.ActiveLevels {
	type group struct {
		side domain.Side
		size quant.Qty
	}
	bySymbol := make(map[string]map[quant.PriceMicros]*group)

	a.store.Each(func(o domain.Order) bool {
		groups, ok := bySymbol[o.Symbol]
		if !ok {
			groups = make(map[quant.PriceMicros]*group)
			bySymbol[o.Symbol] = groups
		}
		if !o.Active {
			return true
		}
		g, ok := groups[o.Price]
		if !ok {
			g = &group{}
			groups[o.Price] = g
		}
		g.side = o.Side
		g.size += o.Size
		return true
	})

	out := make(domain.ActiveLevels, len(bySymbol))
	for symbol, groups := range bySymbol {
		levels := symbolLevels(out, symbol)
		for price, g := range groups {
			levels[domain.LevelKey{Side: g.side, Price: price}] = domain.ActiveLevel{
				Side:  g.side,
				Price: price,
				Size:  g.size,
			}
		}
	}
	return out
}

func symbolLevels(out domain.ActiveLevels, symbol string) map[domain.LevelKey]domain.ActiveLevel {
	levels, ok := out[symbol]
	if !ok {
		levels = make(map[domain.LevelKey]domain.ActiveLevel)
		out[symbol] = levels
	}
	return levels
}
