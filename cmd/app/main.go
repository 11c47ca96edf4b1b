package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mocktrading/internal/app"
	"mocktrading/internal/domain"
	"mocktrading/internal/engine"
	"mocktrading/internal/infra"
	"mocktrading/internal/infra/gateway"

	"github.com/gorilla/websocket"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file")
	replay := flag.String("replay", "", "journal session id to rebuild and dump, then exit")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *replay != "" {
		eng, err := bootstrap.Replay(ctx, *replay)
		if err != nil {
			slog.Error("❌ Replay failed", slog.Any("error", err))
			return
		}
		eng.DumpState("replay_" + *replay + ".json")
		return
	}

	// 3. Pprof Server (for performance profiling)
	if cfg.Debug.PprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", cfg.Debug.PprofAddr))
			if err := http.ListenAndServe(cfg.Debug.PprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 4. Engine
	var eng *engine.Engine
	eng = bootstrap.NewEngine(func(u engine.Update) {
		if u.Symbol == "" {
			return
		}
		d := eng.Depth(u.Symbol, 1)
		attrs := []any{slog.String("kind", string(u.Kind)), slog.String("symbol", u.Symbol)}
		if len(d.Bids) > 0 {
			attrs = append(attrs, slog.String("best_bid", d.Bids[0].Price.String()))
		}
		if len(d.Asks) > 0 {
			attrs = append(attrs, slog.String("best_ask", d.Asks[0].Price.String()))
		}
		slog.Debug("Book updated", attrs...)
	})
	go eng.Run(ctx)
	slog.InfoContext(ctx, "✅ Engine started")

	// 5. Connect once; reconnection belongs to the host
	dialer := websocket.Dialer{HandshakeTimeout: time.Duration(cfg.Server.HandshakeTimeMS) * time.Millisecond}
	conn, _, err := dialer.DialContext(ctx, cfg.Server.WSURL, nil)
	if err != nil {
		slog.Error("❌ Dial failed", slog.String("url", cfg.Server.WSURL), slog.Any("error", err))
		return
	}

	feed := gateway.NewFeed(conn, eng.Inbox(), time.Duration(cfg.Server.ReadTimeoutSec)*time.Second)
	slog.InfoContext(ctx, "✨ Connected. Press Ctrl+C to exit.", slog.String("url", cfg.Server.WSURL))

	if err := feed.Run(ctx); err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) {
			slog.Error("Feed terminated", slog.Any("error", err), slog.Bool("retriable", netErr.IsRetriable()))
		}
	}

	m := infra.GlobalMetrics.Snapshot()
	slog.Info("👋 Shutting down",
		slog.Uint64("applied", m.EventsApplied),
		slog.Uint64("rejected", m.EventsRejected),
		slog.Uint64("ignored", m.EventsIgnored),
		slog.Uint64("journal_failures", m.JournalFailures))
}
