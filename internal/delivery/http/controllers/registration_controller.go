package controllers

import (
	"log/slog"
	"net/http"

	"eventstream/internal/delivery/http/helpers"
	"eventstream/internal/delivery/http/middleware"
	"eventstream/internal/domain"
)

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// RegisterRequest is the request body for POST /registrations.
type RegisterRequest struct {
	EventID string `json:"eventId"`
}

// Validate implements helpers.Validator.
func (r *RegisterRequest) Validate() []string {
	if r.EventID == "" {
		return []string{"eventId is required"}
	}
	if !validEventID(r.EventID) {
		return []string{"eventId must be a UUID"}
	}
	return nil
}

// RegistrationPayload wraps a single registration.
type RegistrationPayload struct {
	Registration *domain.Registration `json:"registration"`
}

// RegistrationSuccessResponse is the success response envelope for register and cancel.
type RegistrationSuccessResponse struct {
	Data  RegistrationPayload `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// RegistrationCheck is the payload of GET /registrations/check/{eventID}.
type RegistrationCheck struct {
	IsRegistered bool                 `json:"isRegistered"`
	Registration *domain.Registration `json:"registration"`
}

// RegistrationCheckSuccessResponse is the success response envelope for the check endpoint.
type RegistrationCheckSuccessResponse struct {
	Data  RegistrationCheck `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// Register godoc
// @Summary Register for an event
// @Description Admits the caller to the event. 201 for a new registration, 200 when a cancelled one was reactivated (same id).
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.RegisterRequest true "Event to register for"
// @Success 200 {object} controllers.RegistrationSuccessResponse "Reactivated"
// @Success 201 {object} controllers.RegistrationSuccessResponse "Created"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_registered | event_full"
// @Failure 503 {object} helpers.APIResponse "error.code: storage_unavailable"
// @Router /registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	reg, created, err := c.Service.Register(r.Context(), req.EventID, identity)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	helpers.WriteJSONSuccess(w, status, RegistrationPayload{Registration: reg})
}

// Cancel godoc
// @Summary Cancel a registration
// @Description Cancels the caller's own registration and frees its seat.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /registrations/{id}/cancel [patch]
func (c *RegistrationController) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validEventID(id) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registration id")
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	reg, err := c.Service.Cancel(r.Context(), id, userID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RegistrationPayload{Registration: reg})
}

// Check godoc
// @Summary Check the caller's registration for an event
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.RegistrationCheckSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /registrations/check/{eventID} [get]
func (c *RegistrationController) Check(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validEventID(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	reg, registered, err := c.Service.Check(r.Context(), eventID, userID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RegistrationCheck{IsRegistered: registered, Registration: reg})
}

// ListMine godoc
// @Summary List the caller's confirmed registrations
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=[]domain.EventRegistrationWithEvent}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /registrations/mine [get]
func (c *RegistrationController) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	regs, err := c.Service.ListMine(r.Context(), userID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, regs)
}

// ListForEvent godoc
// @Summary List confirmed registrations of an event
// @Description Only the event's organizer may list its registrations.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} helpers.APIResponse{data=[]domain.Registration}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /registrations/event/{eventID} [get]
func (c *RegistrationController) ListForEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validEventID(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	regs, err := c.Service.ListForEvent(r.Context(), eventID, identity)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, regs)
}

func (c *RegistrationController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := helpers.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	}
	helpers.WriteJSONError(w, status, code, helpers.PublicMessage(err))
}
