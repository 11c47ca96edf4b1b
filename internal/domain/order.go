package domain

import (
	"fmt"

	"mocktrading/pkg/quant"
)

// Side is the book side an order or level rests on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// ParseSide accepts the venue's side labels.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBid, SideAsk:
		return Side(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
}

// Valid reports whether s is bid or ask.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Order status values pushed by the venue. Only "active" orders are working.
const (
	OrderStatusActive    = "active"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// Order is one working order mirrored from the venue.
// Inactive orders stay in the table until an explicit removal arrives.
type Order struct {
	ID     string            `json:"order_id"`
	Symbol string            `json:"symbol"`
	Side   Side              `json:"side"`
	Price  quant.PriceMicros `json:"price"`
	Size   quant.Qty         `json:"size"`
	Active bool              `json:"active"`
}

// OrderPatch carries a partial update for one order id.
// A nil field was not supplied; a non-nil zero value is applied as-is.
type OrderPatch struct {
	OrderID string             `json:"order_id"`
	Active  *bool              `json:"active,omitempty"`
	Size    *quant.Qty         `json:"size,omitempty"`
	Price   *quant.PriceMicros `json:"price,omitempty"`
}

// Apply writes the supplied fields onto o.
func (p OrderPatch) Apply(o *Order) {
	if p.Active != nil {
		o.Active = *p.Active
	}
	if p.Size != nil {
		o.Size = *p.Size
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
}
