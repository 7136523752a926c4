package domain

import "context"

// StreamStatus is the live state of an event's stream.
type StreamStatus string

const (
	StreamStatusScheduled StreamStatus = "scheduled"
	StreamStatusLive      StreamStatus = "live"
	StreamStatusEnded     StreamStatus = "ended"
)

// Valid reports whether s is one of the known stream states.
func (s StreamStatus) Valid() bool {
	switch s {
	case StreamStatusScheduled, StreamStatusLive, StreamStatusEnded:
		return true
	}
	return false
}

// Event is the read-only view of an event that the live-room core needs.
// Events are created and edited elsewhere.
// swagger:model Event
type Event struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	OrganizerID  string       `json:"organizerId"`
	MaxAttendees int          `json:"maxAttendees"`
	StreamStatus StreamStatus `json:"streamStatus"`
}

// Unlimited reports whether the event admits any number of attendees.
func (e *Event) Unlimited() bool {
	return e.MaxAttendees <= 0
}

// EventRepository defines read access to events.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
}
