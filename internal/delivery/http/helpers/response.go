package helpers

import (
	"encoding/json"
	"errors"
	"net/http"

	"eventstream/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
// The websocket error frame carries the same codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeAlreadyRegistered  = "already_registered"
	ErrCodeEventFull          = "event_full"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeInternalError      = "internal_error"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

// ErrorStatus maps a domain error to its HTTP status and error code.
// Unknown errors map to 500 internal_error.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest, ErrCodeInvalidMessage
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return http.StatusConflict, ErrCodeAlreadyRegistered
	case errors.Is(err, domain.ErrEventFull):
		return http.StatusConflict, ErrCodeEventFull
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusServiceUnavailable, ErrCodeStorageUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// PublicMessage is the client-facing text for err. Internal details never leave the server.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return "message must be 1 to 500 characters"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return domain.ErrAlreadyRegistered.Error()
	case errors.Is(err, domain.ErrEventFull):
		return domain.ErrEventFull.Error()
	case errors.Is(err, domain.ErrStorageFailure):
		return "storage temporarily unavailable"
	default:
		return "internal error"
	}
}
