package postgres

import (
	"context"
	"database/sql"

	"eventstream/internal/domain"

	"github.com/samber/lo"
)

type chatMessageRepository struct {
	DB *sql.DB
}

func NewChatMessageRepository(db *sql.DB) domain.ChatMessageRepository {
	return &chatMessageRepository{
		DB: db,
	}
}

// Append inserts the message. The id comes from the sequence and created_at from the
// database clock, so the client never supplies either.
func (r *chatMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (event_id, sender_id, sender_name, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, query, msg.EventID, msg.SenderID, msg.SenderName, msg.Body).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return storageErr("insert chat message", err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return nil
}

func (r *chatMessageRepository) ListBefore(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, error) {
	q = q.Normalize()
	var (
		rows *sql.Rows
		err  error
	)
	// Newest first so LIMIT keeps the most recent page; reversed below.
	if q.Before != nil {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, event_id, sender_id, sender_name, body, created_at
			FROM chat_messages
			WHERE event_id = $1 AND created_at < $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, eventID, q.Before.UTC(), q.Limit)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, event_id, sender_id, sender_name, body, created_at
			FROM chat_messages
			WHERE event_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, eventID, q.Limit)
	}
	if err != nil {
		return nil, storageErr("list chat messages", err)
	}
	defer rows.Close()

	msgs := make([]*domain.ChatMessage, 0, q.Limit)
	for rows.Next() {
		m := &domain.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.EventID, &m.SenderID, &m.SenderName, &m.Body, &m.Timestamp); err != nil {
			return nil, storageErr("scan chat message", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list chat messages", err)
	}
	return lo.Reverse(msgs), nil
}

func (r *chatMessageRepository) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM chat_messages WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, storageErr("delete chat messages", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete chat messages", err)
	}
	return n, nil
}
