package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventstream/internal/domain"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

const registrationColumns = `id, event_id, attendee_id, status, created_at, updated_at`

type eventRegistrationRepository struct {
	DB *sql.DB
}

func NewEventRegistrationRepository(db *sql.DB) domain.EventRegistrationRepository {
	return &eventRegistrationRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var status string
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.AttendeeID, &status, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	return reg, nil
}

// Admit runs the whole capacity decision in one transaction.
//
// The event row is locked with SELECT ... FOR UPDATE first, so every admission for the
// same event queues behind it. The confirmed count read after the lock cannot change
// until commit, which closes the window between counting and writing. Admissions for
// different events lock different rows and never wait on each other.
func (r *eventRegistrationRepository) Admit(ctx context.Context, eventID, attendeeID string, now time.Time) (*domain.Registration, domain.AdmitOutcome, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, storageErr("begin admission", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback() }()

	var maxAttendees int
	err = tx.QueryRowContext(ctx, `
		SELECT max_attendees
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&maxAttendees)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, storageErr("lock event", err)
	}

	existing, err := scanRegistration(tx.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1 AND attendee_id = $2
		FOR UPDATE
	`, eventID, attendeeID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = nil
	case err != nil:
		return nil, 0, storageErr("get registration", err)
	case existing.Confirmed():
		return nil, 0, domain.ErrAlreadyRegistered
	}

	if maxAttendees > 0 {
		var confirmed int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM event_registrations
			WHERE event_id = $1 AND status = 'confirmed'
		`, eventID).Scan(&confirmed)
		if err != nil {
			return nil, 0, storageErr("count confirmed registrations", err)
		}
		if confirmed >= maxAttendees {
			return nil, 0, domain.ErrEventFull
		}
	}

	var (
		reg     *domain.Registration
		outcome domain.AdmitOutcome
	)
	if existing != nil {
		reg, err = scanRegistration(tx.QueryRowContext(ctx, `
			UPDATE event_registrations
			SET status = 'confirmed', updated_at = $2
			WHERE id = $1
			RETURNING `+registrationColumns, existing.ID, now))
		if err != nil {
			return nil, 0, storageErr("reactivate registration", err)
		}
		outcome = domain.AdmitReactivated
	} else {
		reg = domain.NewRegistration(eventID, attendeeID, now)
		err = tx.QueryRowContext(ctx, `
			INSERT INTO event_registrations (event_id, attendee_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, reg.EventID, reg.AttendeeID, string(reg.Status), reg.CreatedAt, reg.UpdatedAt).Scan(&reg.ID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return nil, 0, domain.ErrAlreadyRegistered
			}
			return nil, 0, storageErr("insert registration", err)
		}
		outcome = domain.AdmitCreated
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, storageErr("commit admission", err)
	}
	return reg, outcome, nil
}

func (r *eventRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get registration", err)
	}
	return reg, nil
}

func (r *eventRegistrationRepository) GetConfirmed(ctx context.Context, eventID, attendeeID string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1 AND attendee_id = $2 AND status = 'confirmed'
	`, eventID, attendeeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get confirmed registration", err)
	}
	return reg, nil
}

func (r *eventRegistrationRepository) SetStatus(ctx context.Context, id string, status domain.RegistrationStatus, now time.Time) (*domain.Registration, error) {
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, `
		UPDATE event_registrations
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+registrationColumns, id, string(status), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("update registration status", err)
	}
	return reg, nil
}

func (r *eventRegistrationRepository) ListConfirmedByAttendee(ctx context.Context, attendeeID string) ([]*domain.Registration, error) {
	return r.list(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE attendee_id = $1 AND status = 'confirmed'
		ORDER BY created_at DESC
	`, attendeeID)
}

func (r *eventRegistrationRepository) ListConfirmedByEvent(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	return r.list(ctx, `
		SELECT `+registrationColumns+`
		FROM event_registrations
		WHERE event_id = $1 AND status = 'confirmed'
		ORDER BY created_at DESC
	`, eventID)
}

func (r *eventRegistrationRepository) list(ctx context.Context, query string, arg string) ([]*domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storageErr("list registrations", err)
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, storageErr("scan registration", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list registrations", err)
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, nil
}
