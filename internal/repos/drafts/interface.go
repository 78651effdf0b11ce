package drafts

import (
	"context"
	"errors"
	"time"
)

var ErrDraftNotFound = errors.New("draft not found")

type State string

const (
	StateAwaitingText  State = "awaiting_text"
	StateAwaitingLabel State = "awaiting_label"
	StateReady         State = "ready"
)

// Draft is an operator's in-progress broadcast.
type Draft struct {
	State       State     `json:"state"`
	Text        string    `json:"text,omitempty"`
	ButtonLabel string    `json:"button_label,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Store keeps at most one draft per operator. Drafts expire after the ttl
// given on Save; an expired draft behaves as missing.
type Store interface {
	Load(ctx context.Context, operatorID int64) (Draft, error)
	Save(ctx context.Context, operatorID int64, d Draft, ttl time.Duration) error
	Delete(ctx context.Context, operatorID int64) error
}
