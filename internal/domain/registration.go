package domain

import (
	"context"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration row.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration represents an attendee's registration for an event.
// There is at most one row per (event, attendee); re-registering reuses it.
// swagger:model Registration
type Registration struct {
	ID         string             `json:"id"`
	EventID    string             `json:"eventId"`
	AttendeeID string             `json:"attendeeId"`
	Status     RegistrationStatus `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// NewRegistration creates a confirmed registration. ID is set by the repository on admit.
func NewRegistration(eventID, attendeeID string, now time.Time) *Registration {
	return &Registration{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Status:     RegistrationConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Confirmed reports whether the registration currently holds a seat.
func (r *Registration) Confirmed() bool {
	return r.Status == RegistrationConfirmed
}

// AdmitOutcome tells how a successful admission was satisfied.
type AdmitOutcome int

const (
	// AdmitCreated means a new row was inserted.
	AdmitCreated AdmitOutcome = iota + 1
	// AdmitReactivated means a cancelled row was confirmed again.
	AdmitReactivated
)

// EventRegistrationRepository defines storage operations for event registrations.
type EventRegistrationRepository interface {
	// Admit confirms (eventID, attendeeID) as one indivisible check-and-write. It returns
	// ErrNotFound for an unknown event, ErrAlreadyRegistered for an existing confirmed row
	// and ErrEventFull when the confirmed count has reached the event's capacity.
	Admit(ctx context.Context, eventID, attendeeID string, now time.Time) (*Registration, AdmitOutcome, error)
	GetByID(ctx context.Context, id string) (*Registration, error)
	// GetConfirmed returns the confirmed row of the pair or ErrNotFound.
	GetConfirmed(ctx context.Context, eventID, attendeeID string) (*Registration, error)
	// SetStatus updates the status and returns the updated row.
	SetStatus(ctx context.Context, id string, status RegistrationStatus, now time.Time) (*Registration, error)
	ListConfirmedByAttendee(ctx context.Context, attendeeID string) ([]*Registration, error)
	ListConfirmedByEvent(ctx context.Context, eventID string) ([]*Registration, error)
}

// EventRegistrationWithEvent bundles a registration with its related event.
type EventRegistrationWithEvent struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// RegistrationService is the registration ledger.
type RegistrationService interface {
	// Register admits the attendee. Returns (reg, created, err): created is false when a
	// cancelled registration was reactivated.
	Register(ctx context.Context, eventID string, attendee Identity) (*Registration, bool, error)
	Cancel(ctx context.Context, registrationID, requesterID string) (*Registration, error)
	// Check returns the confirmed registration, or nil and false when there is none.
	Check(ctx context.Context, eventID, attendeeID string) (*Registration, bool, error)
	ListMine(ctx context.Context, attendeeID string) ([]*EventRegistrationWithEvent, error)
	ListForEvent(ctx context.Context, eventID string, requester Identity) ([]*Registration, error)
}
