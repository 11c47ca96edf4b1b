// Package event defines the typed inbound events the engine consumes.
package event

import (
	"encoding/json"
	"fmt"

	"mocktrading/internal/domain"
	"mocktrading/pkg/quant"
)

// Kind identifies an event type. It is also the journal's discriminator.
type Kind string

const (
	KindBookSnapshot Kind = "book_snapshot"
	KindBookRemoval  Kind = "book_removal"
	KindOrderUpsert  Kind = "order_upsert"
	KindOrderPatch   Kind = "order_patch"
	KindOrderRemoval Kind = "order_removal"
	KindSessionReset Kind = "session_reset"
)

// Event is anything the engine can apply.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Kind
	Stamp(seq uint64, ts quant.TimeStamp)
}

// BaseEvent carries the local apply sequence and time. They are assigned by the
// engine, not the venue, and exist only for journaling.
type BaseEvent struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (b *BaseEvent) GetSeq() uint64         { return b.Seq }
func (b *BaseEvent) GetTs() quant.TimeStamp { return b.Ts }

// Stamp records the apply sequence and time.
func (b *BaseEvent) Stamp(seq uint64, ts quant.TimeStamp) {
	b.Seq = seq
	b.Ts = ts
}

// BookSnapshotEvent replaces a symbol's whole book.
type BookSnapshotEvent struct {
	BaseEvent
	Symbol string         `json:"symbol"`
	Levels []domain.Level `json:"levels"`
}

func (e *BookSnapshotEvent) GetType() Kind { return KindBookSnapshot }

// BookRemovalEvent deletes individual (side, price) keys.
type BookRemovalEvent struct {
	BaseEvent
	Symbol string            `json:"symbol"`
	Levels []domain.LevelRef `json:"levels"`
}

func (e *BookRemovalEvent) GetType() Kind { return KindBookRemoval }

// OrderUpsertEvent inserts or replaces one complete order.
type OrderUpsertEvent struct {
	BaseEvent
	Order domain.Order `json:"order"`
}

func (e *OrderUpsertEvent) GetType() Kind { return KindOrderUpsert }

// OrderPatchEvent applies partial updates to existing orders.
type OrderPatchEvent struct {
	BaseEvent
	Patches []domain.OrderPatch `json:"patches"`
}

func (e *OrderPatchEvent) GetType() Kind { return KindOrderPatch }

// OrderRemovalEvent deletes orders by id.
type OrderRemovalEvent struct {
	BaseEvent
	OrderIDs []string `json:"order_ids"`
}

func (e *OrderRemovalEvent) GetType() Kind { return KindOrderRemoval }

// SessionResetEvent discards all replicated state (room joined).
type SessionResetEvent struct {
	BaseEvent
	Room string `json:"room,omitempty"`
}

func (e *SessionResetEvent) GetType() Kind { return KindSessionReset }

// New returns an empty event of kind.
func New(kind Kind) (Event, error) {
	switch kind {
	case KindBookSnapshot:
		return &BookSnapshotEvent{}, nil
	case KindBookRemoval:
		return &BookRemovalEvent{}, nil
	case KindOrderUpsert:
		return &OrderUpsertEvent{}, nil
	case KindOrderPatch:
		return &OrderPatchEvent{}, nil
	case KindOrderRemoval:
		return &OrderRemovalEvent{}, nil
	case KindSessionReset:
		return &SessionResetEvent{}, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}

// Decode rebuilds an event from its journaled JSON form.
func Decode(kind Kind, payload []byte) (Event, error) {
	ev, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, nil
}
