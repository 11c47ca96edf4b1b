package domain

import "mocktrading/pkg/quant"

// BookView is the read side of the replicated price-level book.
type BookView interface {
	Snapshot(symbol string) BookSnapshot
	Depth(symbol string, n int) Depth
	Symbols() []string
}

// OrderView is the read side of the working-order table, used by the renderer to
// mark rows that hold the local participant's cancellable orders.
type OrderView interface {
	ActiveLevels() ActiveLevels
	ActiveOrderIDs(symbol string, side Side, price quant.PriceMicros) []string
	Order(orderID string) (Order, bool)
}
