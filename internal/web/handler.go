// ABOUTME: HTTP API for the human side of the bridge
// ABOUTME: Chi router wiring request endpoints, admin endpoints and the embedded UI

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/2389/intent-bridge/internal/auth"
	"github.com/2389/intent-bridge/internal/directory"
	"github.com/2389/intent-bridge/internal/store"
)

// adminSessionTTL bounds how long an admin login token stays valid.
const adminSessionTTL = 24 * time.Hour

// Handler serves the web UI and its JSON API.
type Handler struct {
	requests  store.RequestStore
	directory *directory.Directory
	settings  store.SettingsStore
	verifier  *auth.JWTVerifier
	logger    *slog.Logger

	// mcpHandler, when set, is mounted at /mcp for remote agents.
	mcpHandler http.Handler
}

// NewHandler creates the web handler. mcpHandler may be nil.
func NewHandler(requests store.RequestStore, dir *directory.Directory, settings store.SettingsStore, verifier *auth.JWTVerifier, mcpHandler http.Handler) *Handler {
	return &Handler{
		requests:   requests,
		directory:  dir,
		settings:   settings,
		verifier:   verifier,
		logger:     slog.Default().With("component", "web"),
		mcpHandler: mcpHandler,
	}
}

// Router builds the chi router with all routes registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/requests", h.listRequests)
		r.Post("/requests/{id}/reply", h.replyRequest)
		r.Post("/requests/{id}/dismiss", h.dismissRequest)
		r.Get("/history", h.listHistory)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.adminLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/users", h.listUsers)
				r.Post("/users", h.createUser)
				r.Post("/users/{id}/enable", h.setUserActive(true))
				r.Post("/users/{id}/disable", h.setUserActive(false))
				r.Post("/users/{id}/regenerate-key", h.regenerateKey)
				r.Post("/users/{id}/notify", h.setUserNotify)
			})
		})
	})

	if h.mcpHandler != nil {
		r.Mount("/mcp", h.mcpHandler)
	}

	r.Handle("/*", staticHandler())

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON writes a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// maxBodySize caps JSON request bodies. 4MB leaves room for a pasted
// screenshot as a base64 data URL.
const maxBodySize = 4 << 20

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v)
}
