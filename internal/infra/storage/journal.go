package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mocktrading/internal/domain"
	"mocktrading/internal/event"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal appends applied events to SQLite so a room session can be replayed
// after the fact. Each Journal instance writes under its own session id.
type Journal struct {
	db        *gorm.DB
	sessionID string
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	if err := db.AutoMigrate(&domain.JournalEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db, sessionID: uuid.NewString()}, nil
}

// SessionID identifies the entries written by this instance.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Append persists ev under the current session.
func (j *Journal) Append(ctx context.Context, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.GetType(), err)
	}

	entry := &domain.JournalEntry{
		SessionID: j.sessionID,
		Seq:       ev.GetSeq(),
		Kind:      string(ev.GetType()),
		Payload:   payload,
		AppliedAt: int64(ev.GetTs()),
	}
	return j.db.WithContext(ctx).Create(entry).Error
}

// Load returns the events of sessionID in apply order.
func (j *Journal) Load(ctx context.Context, sessionID string) ([]event.Event, error) {
	var entries []domain.JournalEntry
	err := j.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	evs := make([]event.Event, 0, len(entries))
	for _, e := range entries {
		ev, err := event.Decode(event.Kind(e.Kind), e.Payload)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

// Sessions lists every session id in the journal.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	err := j.db.WithContext(ctx).
		Model(&domain.JournalEntry{}).
		Distinct("session_id").
		Order("session_id").
		Pluck("session_id", &ids).Error
	return ids, err
}

// Prune deletes every entry of sessionID.
func (j *Journal) Prune(ctx context.Context, sessionID string) error {
	return j.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&domain.JournalEntry{}).Error
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
