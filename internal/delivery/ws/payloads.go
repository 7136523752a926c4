package ws

import (
	"bytes"
	"encoding/json"

	"eventstream/internal/domain"
)

// Inbound frame names.
const (
	FrameJoinEvent          = "join-event"
	FrameLeaveEvent         = "leave-event"
	FrameSendMessage        = "send-message"
	FrameTyping             = "typing"
	FrameStopTyping         = "stop-typing"
	FrameStreamStatusChange = "stream-status-change"
	FrameSendAnnouncement   = "send-announcement"
)

type eventRef struct {
	EventID string `json:"eventId" validate:"required,uuid"`
}

// decodeEventRef accepts both {"eventId": "..."} and a bare JSON string.
func decodeEventRef(data json.RawMessage, dest *eventRef) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &dest.EventID)
	}
	return json.Unmarshal(data, dest)
}

type sendMessagePayload struct {
	EventID    string `json:"eventId" validate:"required,uuid"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName" validate:"max=100"`
	Body       string `json:"body"`
}

type typingPayload struct {
	EventID    string `json:"eventId" validate:"required,uuid"`
	SenderName string `json:"senderName" validate:"max=100"`
}

type streamStatusPayload struct {
	EventID string `json:"eventId" validate:"required,uuid"`
	Status  string `json:"status" validate:"required,oneof=scheduled live ended"`
}

type announcementPayload struct {
	EventID string `json:"eventId" validate:"required,uuid"`
	Message string `json:"message"`
}

// HistoryPayload is sent to a joining session before any live message.
type HistoryPayload struct {
	EventID  string                `json:"eventId"`
	Messages []*domain.ChatMessage `json:"messages"`
}

// JoinedPayload confirms a join and lists the room's current members.
type JoinedPayload struct {
	EventID string                `json:"eventId"`
	Members []domain.UserPresence `json:"members"`
}

// ErrorPayload is only ever sent to the session that caused it.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
