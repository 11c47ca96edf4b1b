package wire

import (
	"encoding/json"
	"fmt"

	"mocktrading/internal/domain"
	"mocktrading/internal/event"
	"mocktrading/pkg/quant"
)

// Decode turns one push message into an engine event.
//
// Malformed payloads return a *domain.ValidationError (errors.Is ErrMalformedEvent).
// Messages the engine does not consume return domain.ErrUnhandledMessage.
func Decode(raw []byte) (event.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.ValidationError{Kind: "message", Err: err}
	}

	switch env.Type {
	case TypeOrderbookUpdate:
		return decodeBookSnapshot(env)
	case TypeOrderbookDelete:
		return decodeBookRemoval(env)
	case TypeOrderUpdate:
		return decodeOrderUpsert(env)
	case TypeOrderPatch:
		return decodeOrderPatch(env)
	case TypeOrderDelete:
		return decodeOrderRemoval(env)
	case TypeCurrentRoom:
		return decodeRoom(env)
	case "":
		return nil, &domain.ValidationError{Kind: "message", Field: "type", Err: domain.ErrMissingField}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnhandledMessage, env.Type)
}

func missing(kind, field string) error {
	return &domain.ValidationError{Kind: kind, Field: field, Err: domain.ErrMissingField}
}

func invalid(kind, field string, err error) error {
	return &domain.ValidationError{Kind: kind, Field: field, Err: err}
}

func unmarshalData(env envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return missing(env.Type, "data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return invalid(env.Type, "data", err)
	}
	return nil
}

func parseSide(kind, field, s string) (domain.Side, error) {
	if s == "" {
		return "", missing(kind, field)
	}
	side, err := domain.ParseSide(s)
	if err != nil {
		return "", invalid(kind, field, err)
	}
	return side, nil
}

func parsePrice(kind, field string, n json.Number) (quant.PriceMicros, error) {
	if n == "" {
		return 0, missing(kind, field)
	}
	p, err := quant.ParsePriceMicros(n.String())
	if err != nil {
		return 0, invalid(kind, field, err)
	}
	return p, nil
}

func parseQty(kind, field string, n json.Number) (quant.Qty, error) {
	if n == "" {
		return 0, missing(kind, field)
	}
	q, err := quant.ParseQty(n.String())
	if err != nil {
		return 0, invalid(kind, field, err)
	}
	return q, nil
}

func decodeBookSnapshot(env envelope) (event.Event, error) {
	if env.Symbol == "" {
		return nil, missing(env.Type, "symbol")
	}
	var rows []levelMessage
	if err := unmarshalData(env, &rows); err != nil {
		return nil, err
	}

	ev := event.AcquireBookSnapshotEvent()
	ev.Symbol = env.Symbol
	for i, row := range rows {
		lvl, err := decodeLevel(env.Type, i, row)
		if err != nil {
			event.ReleaseBookSnapshotEvent(ev)
			return nil, err
		}
		ev.Levels = append(ev.Levels, lvl)
	}
	return ev, nil
}

func decodeLevel(kind string, i int, row levelMessage) (domain.Level, error) {
	field := fmt.Sprintf("data[%d]", i)
	side, err := parseSide(kind, field+".type", row.side())
	if err != nil {
		return domain.Level{}, err
	}
	price, err := parsePrice(kind, field+".price", row.Price)
	if err != nil {
		return domain.Level{}, err
	}
	qty, err := parseQty(kind, field+".size", row.qty())
	if err != nil {
		return domain.Level{}, err
	}
	return domain.Level{Side: side, Price: price, Quantity: qty}, nil
}

func decodeBookRemoval(env envelope) (event.Event, error) {
	if env.Symbol == "" {
		return nil, missing(env.Type, "symbol")
	}
	var rows []levelMessage
	if err := unmarshalData(env, &rows); err != nil {
		return nil, err
	}

	ev := &event.BookRemovalEvent{Symbol: env.Symbol, Levels: make([]domain.LevelRef, 0, len(rows))}
	for i, row := range rows {
		field := fmt.Sprintf("data[%d]", i)
		side, err := parseSide(env.Type, field+".type", row.side())
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(env.Type, field+".price", row.Price)
		if err != nil {
			return nil, err
		}
		ev.Levels = append(ev.Levels, domain.LevelRef{Side: side, Price: price})
	}
	return ev, nil
}

func decodeOrderUpsert(env envelope) (event.Event, error) {
	var msg orderMessage
	if err := unmarshalData(env, &msg); err != nil {
		return nil, err
	}
	if msg.OrderID == "" {
		return nil, missing(env.Type, "order_id")
	}
	symbol := msg.symbol()
	if symbol == "" {
		symbol = env.Symbol
	}
	if symbol == "" {
		return nil, missing(env.Type, "instrument")
	}
	if msg.Status == "" {
		return nil, missing(env.Type, "status")
	}
	side, err := parseSide(env.Type, "direction", msg.side())
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(env.Type, "price", msg.Price)
	if err != nil {
		return nil, err
	}
	size, err := parseQty(env.Type, "size", msg.Size)
	if err != nil {
		return nil, err
	}

	return &event.OrderUpsertEvent{Order: domain.Order{
		ID:     string(msg.OrderID),
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Size:   size,
		Active: msg.Status == domain.OrderStatusActive,
	}}, nil
}

func decodeOrderPatch(env envelope) (event.Event, error) {
	var rows []patchMessage
	if err := unmarshalData(env, &rows); err != nil {
		return nil, err
	}

	ev := &event.OrderPatchEvent{Patches: make([]domain.OrderPatch, 0, len(rows))}
	for i, row := range rows {
		field := fmt.Sprintf("data[%d]", i)
		if row.OrderID == "" {
			return nil, missing(env.Type, field+".order_id")
		}
		p := domain.OrderPatch{OrderID: string(row.OrderID), Active: row.Active}
		if row.Size != nil {
			size, err := parseQty(env.Type, field+".size", *row.Size)
			if err != nil {
				return nil, err
			}
			p.Size = &size
		}
		if row.Price != nil {
			price, err := parsePrice(env.Type, field+".price", *row.Price)
			if err != nil {
				return nil, err
			}
			p.Price = &price
		}
		ev.Patches = append(ev.Patches, p)
	}
	return ev, nil
}

func decodeOrderRemoval(env envelope) (event.Event, error) {
	var rows []orderID
	if err := unmarshalData(env, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, id := range rows {
		if id == "" {
			return nil, missing(env.Type, fmt.Sprintf("data[%d]", i))
		}
		ids[i] = string(id)
	}
	return &event.OrderRemovalEvent{OrderIDs: ids}, nil
}

func decodeRoom(env envelope) (event.Event, error) {
	var msg roomMessage
	if err := unmarshalData(env, &msg); err != nil {
		return nil, err
	}
	return &event.SessionResetEvent{Room: msg.Name}, nil
}
