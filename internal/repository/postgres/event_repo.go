package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventstream/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, title, organizer_id, max_attendees, stream_status
		FROM events
		WHERE id = $1
	`
	e := &domain.Event{}
	var status string
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Title, &e.OrganizerID, &e.MaxAttendees, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get event", err)
	}
	e.StreamStatus = domain.StreamStatus(status)
	return e, nil
}
