package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the maximum chat body length in characters.
const MaxMessageLength = 500

// History page size limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// ChatMessage is a persisted chat line. ID and Timestamp are assigned by the store.
// swagger:model ChatMessage
type ChatMessage struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"eventId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChatMessage returns an unpersisted message. The sender name is captured now and never re-resolved.
func NewChatMessage(eventID string, sender Identity, body string) *ChatMessage {
	return &ChatMessage{
		EventID:    eventID,
		SenderID:   sender.UserID,
		SenderName: sender.Name,
		Body:       body,
	}
}

// NormalizeMessageBody trims body and checks the length bounds.
func NormalizeMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrInvalidMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrInvalidMessage
	}
	return body, nil
}

// HistoryQuery selects the most recent Limit messages strictly before Before.
// A nil Before means "latest".
type HistoryQuery struct {
	Limit  int
	Before *time.Time
}

// Normalize clamps Limit to [1, MaxHistoryLimit], defaulting to DefaultHistoryLimit.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	return q
}

// ChatMessageRepository is the durable append-only chat log.
type ChatMessageRepository interface {
	// Append persists msg and fills in its ID and Timestamp.
	Append(ctx context.Context, msg *ChatMessage) error
	// ListBefore returns up to q.Limit messages in ascending order.
	ListBefore(ctx context.Context, eventID string, q HistoryQuery) ([]*ChatMessage, error)
	// DeleteByEvent removes every message of the event and returns how many were removed.
	DeleteByEvent(ctx context.Context, eventID string) (int64, error)
}

// HistoryCache stores immutable history pages per event generation. Implementations must
// tolerate being unavailable; callers fall back to the repository.
type HistoryCache interface {
	// Get returns the page stored for q under the event's current generation along with that
	// generation. On ErrCacheMiss the generation is still valid and is what Set must be given.
	Get(ctx context.Context, eventID string, q HistoryQuery) ([]*ChatMessage, int64, error)
	// Set stores msgs under generation gen. Pages stored under a bumped generation are never returned.
	Set(ctx context.Context, eventID string, gen int64, q HistoryQuery, msgs []*ChatMessage) error
	// Invalidate bumps the event's generation, dropping every cached page.
	Invalidate(ctx context.Context, eventID string) error
}

// ChatService is the message pipeline: validate, persist, then broadcast in persist order.
type ChatService interface {
	Submit(ctx context.Context, eventID string, sender Identity, body string) (*ChatMessage, error)
	History(ctx context.Context, eventID string, q HistoryQuery) ([]*ChatMessage, error)
	Clear(ctx context.Context, eventID string) error
	// Join runs attach inside the event's ordering slot, handing it the latest history page.
	// No message persisted after the history read is broadcast before attach returns.
	Join(ctx context.Context, eventID string, attach func(history []*ChatMessage)) error
}
