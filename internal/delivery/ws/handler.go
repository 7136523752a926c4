package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"eventstream/internal/delivery/http/helpers"
	"eventstream/internal/delivery/http/middleware"
	"eventstream/internal/domain"
	"eventstream/internal/realtime"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Config tunes the websocket endpoint.
type Config struct {
	Client         realtime.ClientConfig
	OpTimeout      time.Duration
	AllowedOrigins []string
}

type Handler struct {
	logger   *slog.Logger
	verifier domain.TokenVerifier
	registry *realtime.Registry
	chat     domain.ChatService
	presence domain.PresenceService
	config   Config
	upgrader websocket.Upgrader
	validate *validator.Validate
}

func NewHandler(
	logger *slog.Logger,
	verifier domain.TokenVerifier,
	registry *realtime.Registry,
	chat domain.ChatService,
	presence domain.PresenceService,
	cfg Config,
) *Handler {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 10 * time.Second
	}
	h := &Handler{
		logger:   logger,
		verifier: verifier,
		registry: registry,
		chat:     chat,
		presence: presence,
		config:   cfg,
		validate: newValidator(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(h.config.AllowedOrigins, "*") || lo.Contains(h.config.AllowedOrigins, origin)
}

// ServeHTTP authenticates the handshake and upgrades it. Unauthenticated requests get a
// JSON 401 and are never upgraded.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.TokenFromRequest(r, true)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, err.Error())
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	client := realtime.NewClient(uuid.NewString(), conn, *identity, h.config.Client, h.logger)
	h.logger.InfoContext(r.Context(), "websocket connected", "session_id", client.ID(), "user_id", identity.UserID)

	go client.WritePump()
	go client.ReadPump(h.dispatch, h.disconnect)
}

func (h *Handler) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.config.OpTimeout)
}

func (h *Handler) dispatch(c *realtime.Client, raw []byte) {
	frame, err := realtime.Decode(raw)
	if err != nil {
		h.sendBadRequest(c, "invalid frame")
		return
	}

	switch frame.Event {
	case FrameJoinEvent:
		var p eventRef
		if err := decodeEventRef(frame.Data, &p); err != nil {
			h.sendBadRequest(c, "invalid join-event payload")
			return
		}
		if h.invalid(c, &p) {
			return
		}
		h.joinEvent(c, p.EventID)

	case FrameLeaveEvent:
		var p eventRef
		if err := decodeEventRef(frame.Data, &p); err != nil {
			h.sendBadRequest(c, "invalid leave-event payload")
			return
		}
		if h.invalid(c, &p) {
			return
		}
		h.leaveEvent(c, p.EventID)

	case FrameSendMessage:
		var p sendMessagePayload
		if !h.decode(c, frame, &p) {
			return
		}
		h.sendMessage(c, p)

	case FrameTyping:
		var p typingPayload
		if !h.decode(c, frame, &p) {
			return
		}
		ctx, cancel := h.opContext()
		defer cancel()
		h.presence.Typing(ctx, p.EventID, c.ID(), displayName(c.Identity(), p.SenderName))

	case FrameStopTyping:
		var p eventRef
		if !h.decode(c, frame, &p) {
			return
		}
		ctx, cancel := h.opContext()
		defer cancel()
		h.presence.StopTyping(ctx, p.EventID, c.ID())

	case FrameStreamStatusChange:
		var p streamStatusPayload
		if !h.decode(c, frame, &p) {
			return
		}
		ctx, cancel := h.opContext()
		defer cancel()
		if err := h.presence.ChangeStreamStatus(ctx, p.EventID, c.Identity(), domain.StreamStatus(p.Status)); err != nil {
			h.sendError(c, frame.Event, err)
		}

	case FrameSendAnnouncement:
		var p announcementPayload
		if !h.decode(c, frame, &p) {
			return
		}
		ctx, cancel := h.opContext()
		defer cancel()
		if err := h.presence.Announce(ctx, p.EventID, c.Identity(), p.Message); err != nil {
			h.sendError(c, frame.Event, err)
		}

	default:
		h.sendBadRequest(c, fmt.Sprintf("unknown event %q", frame.Event))
	}
}

func (h *Handler) joinEvent(c *realtime.Client, eventID string) {
	ctx, cancel := h.opContext()
	defer cancel()

	var added bool
	err := h.chat.Join(ctx, eventID, func(history []*domain.ChatMessage) {
		if history == nil {
			history = []*domain.ChatMessage{}
		}
		c.Send(domain.FrameHistory, HistoryPayload{EventID: eventID, Messages: history})
		added = h.registry.Join(eventID, c, c.Identity())
	})
	if err != nil {
		h.sendError(c, FrameJoinEvent, err)
		return
	}

	members := lo.Map(h.registry.MembersOf(eventID), func(m realtime.Membership, _ int) domain.UserPresence {
		return domain.UserPresence{EventID: eventID, UserID: m.Identity.UserID, Name: m.Identity.Name}
	})
	c.Send(domain.FrameJoined, JoinedPayload{EventID: eventID, Members: members})
	if added {
		h.presence.Joined(ctx, eventID, c.ID(), c.Identity())
	}
}

func (h *Handler) leaveEvent(c *realtime.Client, eventID string) {
	if !h.registry.Leave(eventID, c.ID()) {
		return
	}
	ctx, cancel := h.opContext()
	defer cancel()
	h.presence.Left(ctx, eventID, c.ID(), c.Identity())
}

func (h *Handler) sendMessage(c *realtime.Client, p sendMessagePayload) {
	sender := c.Identity()
	if p.SenderID != "" && p.SenderID != sender.UserID {
		h.sendError(c, FrameSendMessage, domain.ErrForbidden)
		return
	}
	sender.Name = displayName(sender, p.SenderName)

	ctx, cancel := h.opContext()
	defer cancel()
	if _, err := h.chat.Submit(ctx, p.EventID, sender, p.Body); err != nil {
		h.sendError(c, FrameSendMessage, err)
	}
}

func (h *Handler) disconnect(c *realtime.Client) {
	left := h.registry.LeaveAll(c.ID())
	ctx, cancel := h.opContext()
	defer cancel()
	for _, eventID := range left {
		h.presence.Left(ctx, eventID, c.ID(), c.Identity())
	}
	h.logger.Info("websocket disconnected", "session_id", c.ID(), "user_id", c.Identity().UserID, "rooms", len(left))
}

// decode unmarshals frame data into dest and validates it, answering with an error frame on failure.
func (h *Handler) decode(c *realtime.Client, frame realtime.Frame, dest any) bool {
	if len(frame.Data) == 0 {
		h.sendBadRequest(c, frame.Event+" requires a payload")
		return false
	}
	if err := json.Unmarshal(frame.Data, dest); err != nil {
		h.sendBadRequest(c, "invalid "+frame.Event+" payload")
		return false
	}
	return !h.invalid(c, dest)
}

func (h *Handler) invalid(c *realtime.Client, dest any) bool {
	err := h.validate.Struct(dest)
	if err == nil {
		return false
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
			return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		})
		h.sendBadRequest(c, strings.Join(fields, "; "))
		return true
	}
	h.sendBadRequest(c, "invalid payload")
	return true
}

func (h *Handler) sendBadRequest(c *realtime.Client, message string) {
	c.Send(domain.FrameError, ErrorPayload{Message: message, Code: helpers.ErrCodeBadRequest})
}

func (h *Handler) sendError(c *realtime.Client, op string, err error) {
	status, code := helpers.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("websocket operation failed", "op", op, "session_id", c.ID(), "err", err)
	}
	c.Send(domain.FrameError, ErrorPayload{Message: helpers.PublicMessage(err), Code: code})
}

// displayName prefers the verified identity's name over the client-supplied one.
func displayName(who domain.Identity, fallback string) string {
	if who.Name != "" {
		return who.Name
	}
	return strings.TrimSpace(fallback)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
