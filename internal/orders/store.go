// Package orders keeps the table of working orders and the aggregated view derived
// from it.
package orders

import (
	"mocktrading/internal/domain"
	"mocktrading/pkg/quant"
)

type record struct {
	order domain.Order
}

// Store is a flat order_id -> Order table. Per-symbol views are derived by filtering.
// Not safe for concurrent use.
type Store struct {
	records map[string]*record
	order   []*record // first-insert order, kept across replacements
}

// NewStore creates an empty table.
func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Upsert inserts o or fully replaces the record with the same id. Nothing from the
// previous record is merged.
func (s *Store) Upsert(o domain.Order) {
	if r, ok := s.records[o.ID]; ok {
		r.order = o
		return
	}
	r := &record{order: o}
	s.records[o.ID] = r
	s.order = append(s.order, r)
}

// Patch applies the supplied fields of each patch to the record with that id.
// Ids without a record are skipped. Returns the number of patches applied.
func (s *Store) Patch(patches []domain.OrderPatch) int {
	applied := 0
	for _, p := range patches {
		r, ok := s.records[p.OrderID]
		if !ok {
			continue
		}
		p.Apply(&r.order)
		applied++
	}
	return applied
}

// Remove deletes the given ids and returns how many existed.
func (s *Store) Remove(ids []string) int {
	removed := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.compact()
	}
	return removed
}

// compact drops records no longer in the table, keeping order.
func (s *Store) compact() {
	kept := s.order[:0]
	for _, r := range s.order {
		if s.records[r.order.ID] == r {
			kept = append(kept, r)
		}
	}
	clear(s.order[len(kept):])
	s.order = kept
}

// Get returns a copy of the order with id.
func (s *Store) Get(id string) (domain.Order, bool) {
	r, ok := s.records[id]
	if !ok {
		return domain.Order{}, false
	}
	return r.order, true
}

// Len returns the number of records, active or not.
func (s *Store) Len() int {
	return len(s.records)
}

// Each calls fn for every order in insertion order until fn returns false.
func (s *Store) Each(fn func(domain.Order) bool) {
	for _, r := range s.order {
		if !fn(r.order) {
			return
		}
	}
}

// Orders returns the orders for symbol in insertion order. An empty symbol returns all.
func (s *Store) Orders(symbol string) []domain.Order {
	out := make([]domain.Order, 0)
	s.Each(func(o domain.Order) bool {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
		return true
	})
	return out
}

// ActiveOrderIDs lists the active orders resting at (symbol, side, price).
func (s *Store) ActiveOrderIDs(symbol string, side domain.Side, price quant.PriceMicros) []string {
	var ids []string
	s.Each(func(o domain.Order) bool {
		if o.Active && o.Symbol == symbol && o.Side == side && o.Price == price {
			ids = append(ids, o.ID)
		}
		return true
	})
	return ids
}
