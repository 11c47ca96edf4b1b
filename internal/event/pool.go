package event

import (
	"sync"
)

// Book snapshots are the highest-frequency push (one per book change per symbol),
// so their events are pooled.
//
// Usage:
//
//	ev := AcquireBookSnapshotEvent()
//	ev.Symbol = "AAPL"
//	ev.Levels = append(ev.Levels, lvl)
//	inbox <- ev  // the engine releases it after applying
var bookSnapshotPool = sync.Pool{
	New: func() interface{} {
		return &BookSnapshotEvent{}
	},
}

// AcquireBookSnapshotEvent gets a BookSnapshotEvent from the pool.
// The returned event has zero values; Levels may have spare capacity.
func AcquireBookSnapshotEvent() *BookSnapshotEvent {
	return bookSnapshotPool.Get().(*BookSnapshotEvent)
}

// ReleaseBookSnapshotEvent returns a BookSnapshotEvent to the pool.
// The caller must not touch ev afterwards.
func ReleaseBookSnapshotEvent(ev *BookSnapshotEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Symbol = ""
	ev.Levels = ev.Levels[:0]

	bookSnapshotPool.Put(ev)
}

// Warmup pre-allocates snapshot events to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 256

	evs := make([]*BookSnapshotEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireBookSnapshotEvent())
	}
	for _, ev := range evs {
		ReleaseBookSnapshotEvent(ev)
	}
}
