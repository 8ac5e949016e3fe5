package store

import (
	"context"
	"time"
)

// CallOutcome describes how a call attempt finished.
type CallOutcome string

const (
	OutcomeCompleted CallOutcome = "completed"
	OutcomeTimedOut  CallOutcome = "timed_out"
	OutcomeFailed    CallOutcome = "failed"
	OutcomeAbandoned CallOutcome = "abandoned"
)

// CallRecord stores the result of one practice-call attempt.
type CallRecord struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	PersonaName    string      `json:"persona_name"`
	ConversationID string      `json:"conversation_id"`
	Outcome        CallOutcome `json:"outcome"`
	Duration       int         `json:"duration_seconds"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Store persists per-user settings blobs and call records.
type Store interface {
	SaveSettings(ctx context.Context, userID string, blob []byte) error
	LoadSettings(ctx context.Context, userID string) ([]byte, error)
	SaveCallRecord(ctx context.Context, record CallRecord) error
	RecentCalls(ctx context.Context, userID string, limit int) ([]CallRecord, error)
	Close() error
}
