package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"eventstream/internal/domain"
)

type presenceService struct {
	broadcaster domain.Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewPresenceService returns the control channel. Every call is a single fan-out with no storage.
func NewPresenceService(broadcaster domain.Broadcaster, logger *slog.Logger) domain.PresenceService {
	return &presenceService{
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *presenceService) Joined(ctx context.Context, eventID, sessionID string, who domain.Identity) {
	s.broadcaster.Broadcast(eventID, domain.FrameUserJoined, domain.UserPresence{
		EventID: eventID,
		UserID:  who.UserID,
		Name:    who.Name,
	}, sessionID)
}

func (s *presenceService) Left(ctx context.Context, eventID, sessionID string, who domain.Identity) {
	s.broadcaster.Broadcast(eventID, domain.FrameUserLeft, domain.UserPresence{
		EventID: eventID,
		UserID:  who.UserID,
		Name:    who.Name,
	}, sessionID)
}

func (s *presenceService) Typing(ctx context.Context, eventID, sessionID, senderName string) {
	s.broadcaster.Broadcast(eventID, domain.FrameUserTyping, domain.TypingIndicator{SenderName: senderName}, sessionID)
}

func (s *presenceService) StopTyping(ctx context.Context, eventID, sessionID string) {
	s.broadcaster.Broadcast(eventID, domain.FrameUserStopTyping, nil, sessionID)
}

func (s *presenceService) ChangeStreamStatus(ctx context.Context, eventID string, who domain.Identity, status domain.StreamStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidInput
	}
	if !who.IsOrganizer() {
		return domain.ErrForbidden
	}
	n := s.broadcaster.Broadcast(eventID, domain.FrameStreamStatusUpdated, domain.StreamStatusUpdate{Status: status}, "")
	s.logger.InfoContext(ctx, "stream status changed", "event_id", eventID, "status", status, "recipients", n)
	return nil
}

// Announce with nobody in the room is a no-op, not an error.
func (s *presenceService) Announce(ctx context.Context, eventID string, who domain.Identity, message string) error {
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > domain.MaxAnnouncementLength {
		return domain.ErrInvalidInput
	}
	if !who.IsOrganizer() {
		return domain.ErrForbidden
	}
	n := s.broadcaster.Broadcast(eventID, domain.FrameAnnouncement, domain.Announcement{
		Message:   message,
		Timestamp: s.now().UTC(),
	}, "")
	s.logger.InfoContext(ctx, "announcement sent", "event_id", eventID, "recipients", n)
	return nil
}
