package domain

import (
	"context"
	"time"
)

// Names of the frames sent to room members.
const (
	FrameUserJoined          = "user-joined"
	FrameUserLeft            = "user-left"
	FrameNewMessage          = "new-message"
	FrameUserTyping          = "user-typing"
	FrameUserStopTyping      = "user-stop-typing"
	FrameStreamStatusUpdated = "stream-status-updated"
	FrameAnnouncement        = "announcement"
	FrameHistory             = "history"
	FrameJoined              = "joined"
	FrameError               = "error"
)

// Broadcaster fans a frame out to the current members of an event room.
// A non-empty exceptSessionID skips that session. It returns the number of sessions
// the frame was queued for. Delivery is best-effort per session.
type Broadcaster interface {
	Broadcast(eventID, frame string, payload any, exceptSessionID string) int
}

// PresenceService is the advisory control channel: no persistence, no ordering.
type PresenceService interface {
	Joined(ctx context.Context, eventID, sessionID string, who Identity)
	Left(ctx context.Context, eventID, sessionID string, who Identity)
	Typing(ctx context.Context, eventID, sessionID, senderName string)
	StopTyping(ctx context.Context, eventID, sessionID string)
	ChangeStreamStatus(ctx context.Context, eventID string, who Identity, status StreamStatus) error
	Announce(ctx context.Context, eventID string, who Identity, message string) error
}

// UserPresence is the payload of user-joined and user-left.
type UserPresence struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
}

// TypingIndicator is the payload of user-typing.
type TypingIndicator struct {
	SenderName string `json:"senderName"`
}

// StreamStatusUpdate is the payload of stream-status-updated.
type StreamStatusUpdate struct {
	Status StreamStatus `json:"status"`
}

// Announcement is the payload of announcement.
type Announcement struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxAnnouncementLength bounds organizer announcements in characters.
const MaxAnnouncementLength = 1000
