package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"mocktrading/internal/book"
	"mocktrading/internal/domain"
	"mocktrading/internal/event"
	"mocktrading/internal/infra"
	"mocktrading/internal/orders"
	"mocktrading/pkg/quant"
)

// Journal persists applied events. Failures are logged, never fatal.
type Journal interface {
	Append(ctx context.Context, ev event.Event) error
}

// Update tells the renderer which view changed.
type Update struct {
	Kind   event.Kind
	Symbol string // empty for events spanning several symbols
}

// Engine is the single-threaded replica of one room session: the price-level book,
// the working-order table and the aggregated view derived from it.
//
// Mutation happens in Run (or Apply); mu guards the state against readers on
// other goroutines.
type Engine struct {
	inbox   chan event.Event
	book    *book.Book
	orders  *orders.Store
	agg     *orders.Aggregator
	mode    orders.Mode
	nextSeq uint64
	journal Journal

	dumpPath string

	// Boundary: used to notify the renderer of state changes
	onUpdate func(Update)

	mu sync.RWMutex
}

var _ domain.BookView = (*Engine)(nil)
var _ domain.OrderView = (*Engine)(nil)

// NewEngine creates an empty session. journal and onUpdate may be nil.
func NewEngine(inboxSize int, journal Journal, mode orders.Mode, onUpdate func(Update)) *Engine {
	store := orders.NewStore()
	return &Engine{
		inbox:    make(chan event.Event, inboxSize),
		book:     book.New(),
		orders:   store,
		agg:      orders.NewAggregator(store, mode),
		mode:     mode,
		nextSeq:  1,
		journal:  journal,
		onUpdate: onUpdate,
		dumpPath: "panic_dump.json",
	}
}

// SetDumpPath sets where Run writes the state dump before halting on a panic.
func (e *Engine) SetDumpPath(path string) {
	e.dumpPath = path
}

// Inbox returns the event channel. The feed sends events here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started", slog.String("aggregation", e.mode.String()))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState(e.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return
		case ev := <-e.inbox:
			e.process(ctx, ev)
			if snap, ok := ev.(*event.BookSnapshotEvent); ok {
				event.ReleaseBookSnapshotEvent(snap)
			}
		}
	}
}

// Apply processes ev synchronously, journaling it like Run does.
func (e *Engine) Apply(ctx context.Context, ev event.Event) {
	e.process(ctx, ev)
}

// Replay applies journaled events without writing them back.
func (e *Engine) Replay(evs []event.Event) {
	for _, ev := range evs {
		e.replayOne(ev)
	}
	slog.Info("Replay finished", slog.Int("events", len(evs)))
}

// replayOne keeps the journaled seq so nextSeq continues the recorded session.
func (e *Engine) replayOne(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dispatch(ev)
	if seq := ev.GetSeq(); seq >= e.nextSeq {
		e.nextSeq = seq + 1
	}
}

func (e *Engine) process(ctx context.Context, ev event.Event) {
	start := time.Now()

	update := e.apply(ev)

	if e.journal != nil {
		if err := e.journal.Append(ctx, ev); err != nil {
			infra.GlobalMetrics.RecordJournalFailure()
			slog.Error("Journal append failed",
				slog.String("kind", string(ev.GetType())),
				slog.Uint64("seq", ev.GetSeq()),
				slog.Any("error", err))
		}
	}

	infra.GlobalMetrics.RecordEvent(time.Since(start).Nanoseconds())

	if e.onUpdate != nil {
		e.onUpdate(update)
	}
}

// apply stamps and dispatches ev under the write lock. The lock is released even
// if dispatch panics, so the halt path can still dump state.
func (e *Engine) apply(ev event.Event) Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.Stamp(e.nextSeq, quant.Now())
	e.nextSeq++
	return e.dispatch(ev)
}

// dispatch must be called with mu held.
func (e *Engine) dispatch(ev event.Event) Update {
	update := Update{Kind: ev.GetType()}

	switch ev := ev.(type) {
	case *event.BookSnapshotEvent:
		e.book.ApplySnapshot(ev.Symbol, ev.Levels)
		update.Symbol = ev.Symbol
	case *event.BookRemovalEvent:
		e.book.RemoveLevels(ev.Symbol, ev.Levels)
		update.Symbol = ev.Symbol
	case *event.OrderUpsertEvent:
		e.orders.Upsert(ev.Order)
		update.Symbol = ev.Order.Symbol
	case *event.OrderPatchEvent:
		if n := e.orders.Patch(ev.Patches); n < len(ev.Patches) {
			slog.Debug("Patch skipped unknown orders", slog.Int("patches", len(ev.Patches)), slog.Int("applied", n))
		}
	case *event.OrderRemovalEvent:
		e.orders.Remove(ev.OrderIDs)
	case *event.SessionResetEvent:
		e.reset()
		slog.Info("Session reset", slog.String("room", ev.Room))
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
	return update
}

// Reset discards all replicated state, as when the client leaves its room.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.book = book.New()
	e.orders = orders.NewStore()
	e.agg = orders.NewAggregator(e.orders, e.mode)
	infra.GlobalMetrics.RecordReset()
}

// Snapshot returns a copy of symbol's book (external read).
func (e *Engine) Snapshot(symbol string) domain.BookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Snapshot(symbol)
}

// Depth returns the ordered ladder for symbol, n levels per side.
func (e *Engine) Depth(symbol string, n int) domain.Depth {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Depth(symbol, n)
}

// Symbols lists the symbols present in the book.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Symbols()
}

// ActiveLevels returns the freshly aggregated active-order view.
func (e *Engine) ActiveLevels() domain.ActiveLevels {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.ActiveLevels()
}

// ActiveOrderIDs lists the active orders resting at (symbol, side, price).
func (e *Engine) ActiveOrderIDs(symbol string, side domain.Side, price quant.PriceMicros) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.ActiveOrderIDs(symbol, side, price)
}

// Order returns a copy of one order.
func (e *Engine) Order(orderID string) (domain.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.Get(orderID)
}

// Orders returns the orders of symbol ("" for all) in arrival order.
func (e *Engine) Orders(symbol string) []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.Orders(symbol)
}

// OrderCount returns the number of orders in the table, active or not.
func (e *Engine) OrderCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders.Len()
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	e.mu.RLock()
	books := make(map[string]domain.BookSnapshot, e.book.Len())
	for _, symbol := range e.book.Symbols() {
		books[symbol] = e.book.Snapshot(symbol)
	}
	data := struct {
		NextSeq uint64                         `json:"next_seq"`
		Books   map[string]domain.BookSnapshot `json:"books"`
		Orders  []domain.Order                 `json:"orders"`
	}{
		NextSeq: e.nextSeq,
		Books:   books,
		Orders:  e.orders.Orders(""),
	}
	e.mu.RUnlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
