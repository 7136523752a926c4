package controllers

import (
	"log/slog"
	"net/http"

	"eventstream/internal/delivery/http/helpers"
	"eventstream/internal/domain"

	"github.com/google/uuid"
)

type ChatController struct {
	Logger  *slog.Logger
	Service domain.ChatService
}

func NewChatController(logger *slog.Logger, svc domain.ChatService) *ChatController {
	return &ChatController{
		Logger:  logger,
		Service: svc,
	}
}

// ChatHistory is the payload of GET /chat/{eventID}.
type ChatHistory struct {
	Messages []*domain.ChatMessage `json:"messages"`
}

// ChatHistorySuccessResponse is the success response envelope for GET /chat/{eventID}.
type ChatHistorySuccessResponse struct {
	Data  ChatHistory       `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// validEventID reports whether id is a canonical UUID.
func validEventID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// History godoc
// @Summary Get chat history for an event
// @Description Returns the most recent messages strictly before `before` (or the latest messages), oldest first.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param before query string false "RFC3339 cursor; only messages strictly older are returned"
// @Success 200 {object} controllers.ChatHistorySuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 503 {object} helpers.APIResponse "error.code: storage_unavailable"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /chat/{eventID} [get]
func (c *ChatController) History(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validEventID(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	q, err := helpers.ParseHistoryQuery(r)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}

	msgs, err := c.Service.History(r.Context(), eventID, q)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ChatHistory{Messages: msgs})
}

// Clear godoc
// @Summary Clear an event's chat
// @Description Permanently deletes every persisted message of the event. Organizer only.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "Chat cleared"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 503 {object} helpers.APIResponse "error.code: storage_unavailable"
// @Router /chat/{eventID} [delete]
func (c *ChatController) Clear(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validEventID(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	if err := c.Service.Clear(r.Context(), eventID); err != nil {
		c.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ChatController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := helpers.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	}
	helpers.WriteJSONError(w, status, code, helpers.PublicMessage(err))
}
