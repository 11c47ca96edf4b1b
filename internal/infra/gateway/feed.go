package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mocktrading/internal/domain"
	"mocktrading/internal/event"
	"mocktrading/internal/infra"
	"mocktrading/internal/infra/wire"

	"github.com/gorilla/websocket"
)

const defaultReadTimeout = 60 * time.Second

// Feed pumps push messages from an established websocket into the engine inbox.
// It does not dial or reconnect; the host owns the connection lifecycle.
type Feed struct {
	conn        *websocket.Conn
	inbox       chan<- event.Event
	readTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewFeed wraps conn. A non-positive readTimeout uses the default.
func NewFeed(conn *websocket.Conn, inbox chan<- event.Event, readTimeout time.Duration) *Feed {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &Feed{
		conn:        conn,
		inbox:       inbox,
		readTimeout: readTimeout,
	}
}

// Run reads until ctx is cancelled or the connection fails.
// It returns nil on cancellation and a *domain.NetworkError otherwise.
func (f *Feed) Run(ctx context.Context) error {
	infra.GlobalMetrics.IncrementConnections()
	defer infra.GlobalMetrics.DecrementConnections()

	// Unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, f.Close)
	defer stop()
	defer f.Close()

	slog.Info("Feed started", slog.String("remote", f.conn.RemoteAddr().String()))

	for {
		if err := f.conn.SetReadDeadline(time.Now().Add(f.readTimeout)); err != nil {
			return domain.NewNetworkError("set deadline", err)
		}

		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Feed stopping...")
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("Feed closed by server", slog.Any("reason", err))
				return domain.NewFatalNetworkError("read", err)
			}
			slog.Warn("Feed read failed", slog.Any("error", err))
			return domain.NewNetworkError("read", err)
		}

		ev, err := wire.Decode(msg)
		if err != nil {
			f.reject(msg, err)
			continue
		}

		select {
		case f.inbox <- ev:
		case <-ctx.Done():
			if snap, ok := ev.(*event.BookSnapshotEvent); ok {
				event.ReleaseBookSnapshotEvent(snap)
			}
			return nil
		}
	}
}

func (f *Feed) reject(msg []byte, err error) {
	if errors.Is(err, domain.ErrUnhandledMessage) {
		infra.GlobalMetrics.RecordIgnored()
		slog.Debug("Skipping message", slog.Any("reason", err))
		return
	}
	infra.GlobalMetrics.RecordRejected()
	slog.Warn("Rejected malformed message",
		slog.Any("error", err),
		slog.Int("bytes", len(msg)))
}

// Close closes the underlying connection. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.conn.Close()
}
