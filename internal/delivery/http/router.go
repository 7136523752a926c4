package http

import (
	"log/slog"
	"net/http"

	"eventstream/internal/delivery/http/controllers"
	"eventstream/internal/delivery/http/helpers"
	"eventstream/internal/delivery/http/middleware"
	"eventstream/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterDeps holds everything the router wires together.
type RouterDeps struct {
	Logger                 *slog.Logger
	Verifier               domain.TokenVerifier
	ChatController         *controllers.ChatController
	RegistrationController *controllers.RegistrationController
	// WebSocket serves /ws. It authenticates the handshake itself.
	WebSocket http.Handler
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(deps RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(deps.Verifier, deps.Logger)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Chat
	mux.HandleFunc("GET /chat/{eventID}", auth(deps.ChatController.History))
	mux.HandleFunc("DELETE /chat/{eventID}", auth(middleware.RequireRole(domain.RoleOrganizer, deps.ChatController.Clear)))

	// Registrations
	mux.HandleFunc("POST /registrations", auth(deps.RegistrationController.Register))
	mux.HandleFunc("PATCH /registrations/{id}/cancel", auth(deps.RegistrationController.Cancel))
	mux.HandleFunc("GET /registrations/check/{eventID}", auth(deps.RegistrationController.Check))
	mux.HandleFunc("GET /registrations/mine", auth(deps.RegistrationController.ListMine))
	mux.HandleFunc("GET /registrations/event/{eventID}", auth(deps.RegistrationController.ListForEvent))

	// Realtime
	if deps.WebSocket != nil {
		mux.Handle("GET /ws", deps.WebSocket)
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
