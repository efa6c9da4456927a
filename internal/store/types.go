package store

import (
	"context"
	"errors"
	"time"
)

// Fact types form a closed set; the analyzer only ever writes these.
const (
	FactCurrentProject  = "current_project"
	FactLastRequest     = "last_request"
	FactUserPreferences = "user_preferences"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrStorage wraps persistence failures so callers can treat them uniformly
// as best-effort.
var ErrStorage = errors.New("storage error")

// Turn is one conversational exchange unit, immutable once written.
type Turn struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextFact is a small typed memory item, at most one live value per
// (user, type) pair.
type ContextFact struct {
	UserID    int64     `json:"user_id"`
	Type      string    `json:"context_type"`
	Data      string    `json:"context_data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationContext aggregates everything the prompt assembler needs for
// one user.
type ConversationContext struct {
	Turns      []Turn        `json:"turns"`
	Facts      []ContextFact `json:"facts"`
	HasContext bool          `json:"has_context"`
}

// UserProfile carries the display metadata delivered by the messaging front end.
type UserProfile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ContextTurnLimit is how many recent turns feed the prompt.
const ContextTurnLimit = 15

// Store persists users, conversation turns and context facts.
type Store interface {
	UpsertUser(ctx context.Context, userID int64, profile UserProfile) error
	AddTurn(ctx context.Context, userID int64, role, content string) error
	RecentTurns(ctx context.Context, userID int64, limit int) ([]Turn, error)
	ClearHistory(ctx context.Context, userID int64) error
	UpsertContextFact(ctx context.Context, userID int64, factType, data string) error
	ContextFacts(ctx context.Context, userID int64, factType string) ([]ContextFact, error)
	ConversationContext(ctx context.Context, userID int64) (ConversationContext, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	Close() error
}
