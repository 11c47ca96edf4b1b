// Package wire decodes the venue's JSON push messages into engine events.
// It is the ingestion boundary: shape validation happens here and nowhere else.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Push message types sent by the venue.
const (
	TypeOrderbookUpdate = "OrderbookUpdate"
	TypeOrderbookDelete = "OrderbookDelete"
	TypeOrderUpdate     = "OrderUpdate"
	TypeOrderPatch      = "OrderPatch"
	TypeOrderDelete     = "OrderDelete"
	TypeCurrentRoom     = "CurrentRoom"
)

// envelope is the outer shape of every push message.
type envelope struct {
	Type   string          `json:"type"`
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

// levelMessage is one book row. The venue labels the side "type" and the quantity
// "size"; "side" and "quantity" are accepted as aliases.
type levelMessage struct {
	Type     string      `json:"type"`
	Side     string      `json:"side"`
	Price    json.Number `json:"price"`
	Size     json.Number `json:"size"`
	Quantity json.Number `json:"quantity"`
}

func (m levelMessage) side() string {
	if m.Type != "" {
		return m.Type
	}
	return m.Side
}

func (m levelMessage) qty() json.Number {
	if m.Size != "" {
		return m.Size
	}
	return m.Quantity
}

// orderID accepts the venue's integer ids as well as strings and keeps the
// canonical string form.
type orderID string

func (id *orderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = orderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return fmt.Errorf("order id %s is not an integer", n)
	}
	*id = orderID(n.String())
	return nil
}

// orderMessage is a complete order record. The venue uses "instrument" and
// "direction"; "symbol" and "side" are accepted as aliases.
type orderMessage struct {
	Instrument string      `json:"instrument"`
	Symbol     string      `json:"symbol"`
	OrderID    orderID     `json:"order_id"`
	Status     string      `json:"status"`
	Price      json.Number `json:"price"`
	Size       json.Number `json:"size"`
	Direction  string      `json:"direction"`
	Side       string      `json:"side"`
}

func (m orderMessage) symbol() string {
	if m.Instrument != "" {
		return m.Instrument
	}
	return m.Symbol
}

func (m orderMessage) side() string {
	if m.Direction != "" {
		return m.Direction
	}
	return m.Side
}

// patchMessage carries optional fields; nil means not supplied.
type patchMessage struct {
	OrderID orderID      `json:"order_id"`
	Active  *bool        `json:"active"`
	Size    *json.Number `json:"size"`
	Price   *json.Number `json:"price"`
}

type roomMessage struct {
	Name string `json:"name"`
}
