package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mocktrading/internal/domain"
	"mocktrading/internal/event"
	"mocktrading/internal/infra"
	"mocktrading/internal/orders"
	"mocktrading/pkg/quant"
)

type fakeJournal struct {
	appended []event.Event
	err      error
}

func (f *fakeJournal) Append(_ context.Context, ev event.Event) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, ev)
	return nil
}

func upsert(id, symbol string, side domain.Side, price float64, size quant.Qty, active bool) *event.OrderUpsertEvent {
	return &event.OrderUpsertEvent{Order: domain.Order{
		ID:     id,
		Symbol: symbol,
		Side:   side,
		Price:  quant.ToPriceMicros(price),
		Size:   size,
		Active: active,
	}}
}

func snapshot(symbol string, levels ...domain.Level) *event.BookSnapshotEvent {
	return &event.BookSnapshotEvent{Symbol: symbol, Levels: levels}
}

func TestEngine_RunAppliesInbox(t *testing.T) {
	updates := make(chan Update, 4)
	eng := NewEngine(10, nil, orders.KeyBySide, func(u Update) { updates <- u })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	ev := event.AcquireBookSnapshotEvent()
	ev.Symbol = "AAPL"
	ev.Levels = append(ev.Levels, domain.Level{Side: domain.SideBid, Price: quant.ToPriceMicros(99), Quantity: 20})
	eng.Inbox() <- ev

	select {
	case u := <-updates:
		if u.Kind != event.KindBookSnapshot || u.Symbol != "AAPL" {
			t.Errorf("unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}

	snap := eng.Snapshot("AAPL")
	if got := snap.Bid[quant.ToPriceMicros(99)]; got != 20 {
		t.Errorf("Expected bid 99 -> 20, got %d", got)
	}
}

func TestEngine_ActiveLevels(t *testing.T) {
	ctx := context.Background()

	t.Run("same side sums", func(t *testing.T) {
		eng := NewEngine(1, nil, orders.KeyBySide, nil)
		eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
		eng.Apply(ctx, upsert("2", "AAPL", domain.SideBid, 100, 5, true))

		got := eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100))
		if len(got) != 1 || got[0].Size != 15 || got[0].Side != domain.SideBid {
			t.Errorf("Expected one bid level of 15, got %+v", got)
		}
	})

	t.Run("deactivated order drops out", func(t *testing.T) {
		eng := NewEngine(1, nil, orders.KeyBySide, nil)
		eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
		eng.Apply(ctx, upsert("2", "AAPL", domain.SideBid, 100, 5, true))

		inactive := false
		eng.Apply(ctx, &event.OrderPatchEvent{Patches: []domain.OrderPatch{{OrderID: "1", Active: &inactive}}})

		got := eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100))
		if len(got) != 1 || got[0].Size != 5 {
			t.Errorf("Expected remaining size 5, got %+v", got)
		}
		if ids := eng.ActiveOrderIDs("AAPL", domain.SideBid, quant.ToPriceMicros(100)); len(ids) != 1 || ids[0] != "2" {
			t.Errorf("Expected only order 2 active, got %v", ids)
		}
		if eng.OrderCount() != 2 {
			t.Errorf("inactive orders stay in the table, got %d", eng.OrderCount())
		}
	})

	t.Run("opposite sides stay apart", func(t *testing.T) {
		eng := NewEngine(1, nil, orders.KeyBySide, nil)
		eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
		eng.Apply(ctx, upsert("2", "AAPL", domain.SideAsk, 100, 4, true))

		got := eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100))
		if len(got) != 2 || got[0].Side != domain.SideBid || got[0].Size != 10 || got[1].Size != 4 {
			t.Errorf("Expected bid 10 and ask 4, got %+v", got)
		}
	})

	t.Run("legacy tiebreak merges sides", func(t *testing.T) {
		eng := NewEngine(1, nil, orders.LegacyLastSide, nil)
		eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
		eng.Apply(ctx, upsert("2", "AAPL", domain.SideAsk, 100, 4, true))

		got := eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100))
		if len(got) != 1 || got[0].Size != 14 || got[0].Side != domain.SideAsk {
			t.Errorf("Expected merged ask level of 14, got %+v", got)
		}
	})

	t.Run("removal clears level", func(t *testing.T) {
		eng := NewEngine(1, nil, orders.KeyBySide, nil)
		eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
		eng.Apply(ctx, &event.OrderRemovalEvent{OrderIDs: []string{"1", "missing"}})

		if got := eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100)); len(got) != 0 {
			t.Errorf("Expected no levels, got %+v", got)
		}
		if _, ok := eng.Order("1"); ok {
			t.Error("order 1 should be gone")
		}
	})
}

func TestEngine_SnapshotReplacesBook(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(1, nil, orders.KeyBySide, nil)

	eng.Apply(ctx, snapshot("AAPL",
		domain.Level{Side: domain.SideBid, Price: quant.ToPriceMicros(99), Quantity: 20},
		domain.Level{Side: domain.SideAsk, Price: quant.ToPriceMicros(101), Quantity: 7},
	))
	eng.Apply(ctx, snapshot("AAPL",
		domain.Level{Side: domain.SideAsk, Price: quant.ToPriceMicros(102), Quantity: 3},
	))

	snap := eng.Snapshot("AAPL")
	if len(snap.Bid) != 0 {
		t.Errorf("bid side should be cleared, got %v", snap.Bid)
	}
	if len(snap.Ask) != 1 || snap.Ask[quant.ToPriceMicros(102)] != 3 {
		t.Errorf("Expected only ask 102 -> 3, got %v", snap.Ask)
	}

	eng.Apply(ctx, &event.BookRemovalEvent{Symbol: "AAPL", Levels: []domain.LevelRef{
		{Side: domain.SideAsk, Price: quant.ToPriceMicros(102)},
		{Side: domain.SideBid, Price: quant.ToPriceMicros(1)},
	}})
	if snap := eng.Snapshot("AAPL"); len(snap.Ask) != 0 {
		t.Errorf("ask 102 should be removed, got %v", snap.Ask)
	}
}

func TestEngine_Depth(t *testing.T) {
	eng := NewEngine(1, nil, orders.KeyBySide, nil)
	eng.Apply(context.Background(), snapshot("MSFT",
		domain.Level{Side: domain.SideBid, Price: quant.ToPriceMicros(98), Quantity: 1},
		domain.Level{Side: domain.SideBid, Price: quant.ToPriceMicros(99), Quantity: 2},
		domain.Level{Side: domain.SideAsk, Price: quant.ToPriceMicros(102), Quantity: 3},
		domain.Level{Side: domain.SideAsk, Price: quant.ToPriceMicros(101), Quantity: 4},
	))

	d := eng.Depth("MSFT", 1)
	if len(d.Bids) != 1 || d.Bids[0].Price != quant.ToPriceMicros(99) {
		t.Errorf("Expected best bid 99, got %+v", d.Bids)
	}
	if len(d.Asks) != 1 || d.Asks[0].Price != quant.ToPriceMicros(101) {
		t.Errorf("Expected best ask 101, got %+v", d.Asks)
	}
	if syms := eng.Symbols(); len(syms) != 1 || syms[0] != "MSFT" {
		t.Errorf("unexpected symbols %v", syms)
	}
}

func TestEngine_SessionReset(t *testing.T) {
	ctx := context.Background()
	updates := 0
	eng := NewEngine(1, nil, orders.KeyBySide, func(Update) { updates++ })

	eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
	eng.Apply(ctx, snapshot("AAPL", domain.Level{Side: domain.SideBid, Price: quant.ToPriceMicros(99), Quantity: 20}))
	eng.Apply(ctx, &event.SessionResetEvent{Room: "TestRoom"})

	if eng.OrderCount() != 0 {
		t.Errorf("orders should be cleared, got %d", eng.OrderCount())
	}
	if len(eng.Symbols()) != 0 {
		t.Errorf("book should be cleared, got %v", eng.Symbols())
	}
	if len(eng.ActiveLevels()) != 0 {
		t.Error("aggregated view should be empty")
	}
	if updates != 3 {
		t.Errorf("Expected 3 updates, got %d", updates)
	}

	// Reset keeps the engine usable.
	eng.Apply(ctx, upsert("2", "AAPL", domain.SideAsk, 100, 1, true))
	if len(eng.ActiveLevels().At("AAPL", quant.ToPriceMicros(100))) != 1 {
		t.Error("engine should accept events after reset")
	}
}

func TestEngine_Journal(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{}
	eng := NewEngine(1, j, orders.KeyBySide, nil)

	eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
	eng.Apply(ctx, &event.OrderRemovalEvent{OrderIDs: []string{"1"}})

	if len(j.appended) != 2 {
		t.Fatalf("Expected 2 journaled events, got %d", len(j.appended))
	}
	for i, ev := range j.appended {
		if ev.GetSeq() != uint64(i+1) {
			t.Errorf("event %d stamped with seq %d", i, ev.GetSeq())
		}
		if ev.GetTs() == 0 {
			t.Errorf("event %d not timestamped", i)
		}
	}

	// Replay rebuilds state without writing back.
	fresh := NewEngine(1, j, orders.KeyBySide, nil)
	fresh.Replay(j.appended[:1])
	if len(j.appended) != 2 {
		t.Errorf("Replay should not journal, got %d entries", len(j.appended))
	}
	if _, ok := fresh.Order("1"); !ok {
		t.Error("replayed order missing")
	}
}

func TestEngine_ReplayContinuesSeq(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{}
	eng := NewEngine(1, j, orders.KeyBySide, nil)
	for i := 0; i < 3; i++ {
		eng.Apply(ctx, upsert(fmt.Sprintf("%d", i), "AAPL", domain.SideBid, 100, 1, true))
	}

	fresh := NewEngine(1, nil, orders.KeyBySide, nil)
	fresh.Replay(j.appended)

	path := filepath.Join(t.TempDir(), "replay.json")
	fresh.DumpState(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("dump not written: %v", err)
	}
	var dump struct {
		NextSeq uint64 `json:"next_seq"`
	}
	if err := json.Unmarshal(b, &dump); err != nil {
		t.Fatalf("invalid dump: %v", err)
	}
	if dump.NextSeq != 4 {
		t.Errorf("Expected next_seq 4 after replaying 3 events, got %d", dump.NextSeq)
	}

	// New events continue after the replayed ones.
	fresh.Apply(ctx, &event.OrderRemovalEvent{OrderIDs: []string{"0"}})
	if fresh.OrderCount() != 2 {
		t.Errorf("Expected 2 orders, got %d", fresh.OrderCount())
	}
}

func TestEngine_RunHaltsOnPanic(t *testing.T) {
	eng := NewEngine(1, nil, orders.KeyBySide, nil)
	dump := filepath.Join(t.TempDir(), "panic_dump.json")
	eng.SetDumpPath(dump)
	eng.Apply(context.Background(), upsert("1", "AAPL", domain.SideBid, 100, 10, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	halted := make(chan any, 1)
	go func() {
		defer func() { halted <- recover() }()
		eng.Run(ctx)
	}()

	var nilSnapshot *event.BookSnapshotEvent
	eng.Inbox() <- nilSnapshot

	select {
	case r := <-halted:
		if r == nil {
			t.Fatal("Run should re-panic after a dispatch panic")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not halt")
	}

	if _, err := os.Stat(dump); err != nil {
		t.Errorf("state dump not written: %v", err)
	}

	// The write lock was released: readers still work.
	readDone := make(chan int, 1)
	go func() { readDone <- eng.OrderCount() }()
	select {
	case n := <-readDone:
		if n != 1 {
			t.Errorf("Expected 1 order, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("reader blocked after halt")
	}
}

func TestEngine_JournalFailureNotFatal(t *testing.T) {
	infra.GlobalMetrics.Reset()
	defer infra.GlobalMetrics.Reset()

	eng := NewEngine(1, &fakeJournal{err: errors.New("disk full")}, orders.KeyBySide, nil)
	eng.Apply(context.Background(), upsert("1", "AAPL", domain.SideBid, 100, 10, true))

	if _, ok := eng.Order("1"); !ok {
		t.Error("state should be applied even if the journal fails")
	}
	snap := infra.GlobalMetrics.Snapshot()
	if snap.JournalFailures != 1 {
		t.Errorf("Expected 1 journal failure, got %d", snap.JournalFailures)
	}
	if snap.EventsApplied != 1 {
		t.Errorf("Expected 1 applied event, got %d", snap.EventsApplied)
	}
}

func TestEngine_DumpState(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(1, nil, orders.KeyBySide, nil)
	eng.Apply(ctx, upsert("1", "AAPL", domain.SideBid, 100, 10, true))
	eng.Apply(ctx, snapshot("AAPL", domain.Level{Side: domain.SideAsk, Price: quant.ToPriceMicros(101), Quantity: 7}))

	path := filepath.Join(t.TempDir(), "dump.json")
	eng.DumpState(path)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("dump not written: %v", err)
	}
	var dump struct {
		NextSeq uint64                         `json:"next_seq"`
		Books   map[string]domain.BookSnapshot `json:"books"`
		Orders  []domain.Order                 `json:"orders"`
	}
	if err := json.Unmarshal(b, &dump); err != nil {
		t.Fatalf("invalid dump: %v", err)
	}
	if dump.NextSeq != 3 {
		t.Errorf("Expected next_seq 3, got %d", dump.NextSeq)
	}
	if len(dump.Orders) != 1 || dump.Orders[0].ID != "1" {
		t.Errorf("unexpected orders %+v", dump.Orders)
	}
	if dump.Books["AAPL"].Ask[quant.ToPriceMicros(101)] != 7 {
		t.Errorf("unexpected books %+v", dump.Books)
	}
}
