package app

import (
	"context"
	"fmt"
	"log/slog"

	"mocktrading/internal/engine"
	"mocktrading/internal/event"
	"mocktrading/internal/infra"
	"mocktrading/internal/infra/storage"
	"mocktrading/internal/orders"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Journal *storage.Journal // nil when journaling is disabled
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, installs the logger and opens the journal.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping mocktrading client...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Journal (optional)
	if cfg.Journal.Enabled {
		j, err := storage.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		b.Journal = j
		slog.Info("✅ Journal opened",
			slog.String("path", cfg.Journal.Path),
			slog.String("session", j.SessionID()))
	}

	// 4. Pre-fill event pools
	event.Warmup()

	return nil
}

// AggregationMode maps the config flag onto the aggregator mode.
func (b *Bootstrap) AggregationMode() orders.Mode {
	if b.Config.Aggregation.LegacySideTiebreak {
		return orders.LegacyLastSide
	}
	return orders.KeyBySide
}

// NewEngine builds an engine wired to the journal (if any).
func (b *Bootstrap) NewEngine(onUpdate func(engine.Update)) *engine.Engine {
	var j engine.Journal
	if b.Journal != nil {
		j = b.Journal
	}
	return engine.NewEngine(b.Config.Engine.InboxSize, j, b.AggregationMode(), onUpdate)
}

// Replay rebuilds a past session from the journal into a fresh engine.
func (b *Bootstrap) Replay(ctx context.Context, sessionID string) (*engine.Engine, error) {
	if b.Journal == nil {
		return nil, fmt.Errorf("replay %s: journal disabled", sessionID)
	}
	evs, err := b.Journal.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	eng := engine.NewEngine(b.Config.Engine.InboxSize, nil, b.AggregationMode(), nil)
	eng.Replay(evs)
	return eng, nil
}

// Close releases resources opened by Initialize.
func (b *Bootstrap) Close() {
	if b.Journal == nil {
		return
	}
	if err := b.Journal.Close(); err != nil {
		slog.Warn("Failed to close journal", slog.Any("error", err))
	}
}
