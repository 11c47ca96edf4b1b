// Package book holds the replicated price-level book: per symbol, per side,
// the last known total resting size at each price.
//
// A refresh replaces a symbol's whole book, so the newest snapshot always wins and
// no delta state machine is needed.
package book

import (
	"sort"

	"mocktrading/internal/domain"
	"mocktrading/pkg/quant"

	"github.com/tidwall/btree"
)

type ladder = btree.Map[quant.PriceMicros, quant.Qty]

// sides always carries both a bid and an ask ladder.
type sides struct {
	bid ladder
	ask ladder
}

func (s *sides) side(side domain.Side) *ladder {
	switch side {
	case domain.SideBid:
		return &s.bid
	case domain.SideAsk:
		return &s.ask
	}
	return nil
}

// Book is not safe for concurrent use; the engine serializes access.
type Book struct {
	symbols map[string]*sides
}

// New creates an empty book.
func New() *Book {
	return &Book{symbols: make(map[string]*sides)}
}

// ApplySnapshot discards both sides of symbol and rebuilds them from levels.
// A price repeated within levels keeps its last quantity.
func (b *Book) ApplySnapshot(symbol string, levels []domain.Level) {
	s := &sides{}
	for _, lvl := range levels {
		if l := s.side(lvl.Side); l != nil {
			l.Set(lvl.Price, lvl.Quantity)
		}
	}
	b.symbols[symbol] = s
}

// RemoveLevels deletes the given (side, price) keys. Unknown keys are ignored.
func (b *Book) RemoveLevels(symbol string, refs []domain.LevelRef) {
	s, ok := b.symbols[symbol]
	if !ok {
		return
	}
	for _, ref := range refs {
		if l := s.side(ref.Side); l != nil {
			l.Delete(ref.Price)
		}
	}
}

// Snapshot returns a detached copy of symbol's book. Unknown symbols yield empty sides.
func (b *Book) Snapshot(symbol string) domain.BookSnapshot {
	snap := domain.NewBookSnapshot()
	s, ok := b.symbols[symbol]
	if !ok {
		return snap
	}
	s.bid.Scan(func(price quant.PriceMicros, qty quant.Qty) bool {
		snap.Bid[price] = qty
		return true
	})
	s.ask.Scan(func(price quant.PriceMicros, qty quant.Qty) bool {
		snap.Ask[price] = qty
		return true
	})
	return snap
}

// Depth returns up to n levels per side, best price first. n <= 0 returns every level.
func (b *Book) Depth(symbol string, n int) domain.Depth {
	d := domain.Depth{
		Symbol: symbol,
		Bids:   []domain.PriceLevel{},
		Asks:   []domain.PriceLevel{},
	}
	s, ok := b.symbols[symbol]
	if !ok {
		return d
	}

	s.bid.Reverse(func(price quant.PriceMicros, qty quant.Qty) bool {
		d.Bids = append(d.Bids, domain.PriceLevel{Price: price, Quantity: qty})
		return n <= 0 || len(d.Bids) < n
	})
	s.ask.Scan(func(price quant.PriceMicros, qty quant.Qty) bool {
		d.Asks = append(d.Asks, domain.PriceLevel{Price: price, Quantity: qty})
		return n <= 0 || len(d.Asks) < n
	})
	return d
}

// Symbols returns every symbol that has received a snapshot, sorted.
func (b *Book) Symbols() []string {
	out := make([]string, 0, len(b.symbols))
	for symbol := range b.symbols {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of symbols in the book.
func (b *Book) Len() int {
	return len(b.symbols)
}
