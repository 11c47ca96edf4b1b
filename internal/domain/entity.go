package domain

import (
	"time"
)

// JournalEntry is one applied event persisted for post-mortem replay of a room session.
type JournalEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index:idx_session_seq,priority:1" json:"session_id"`
	Seq       uint64    `gorm:"index:idx_session_seq,priority:2" json:"seq"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"payload"` // JSON encoding of the event
	AppliedAt int64     `json:"applied_at"` // Unix microseconds
	CreatedAt time.Time `json:"created_at"`
}
