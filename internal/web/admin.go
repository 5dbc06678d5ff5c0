// ABOUTME: Admin endpoints for user management
// ABOUTME: Password login issuing a JWT, then user CRUD behind that token

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/intent-bridge/internal/auth"
	"github.com/2389/intent-bridge/internal/store"
)

// AdminPasswordKey is the settings entry holding the bcrypt hash of the
// admin password. Set it with the bootstrap subcommand.
const AdminPasswordKey = "admin.password_hash"

// adminSubject is the JWT subject for admin sessions.
const adminSubject = "admin"

type loginBody struct {
	Password string `json:"password"`
}

// adminLogin exchanges the admin password for a session token.
func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		Error(w, http.StatusForbidden, "admin login not configured")
		return
	}

	var body loginBody
	if err := decodeJSON(r, &body); err != nil || body.Password == "" {
		Error(w, http.StatusBadRequest, "password required")
		return
	}

	hash, err := h.settings.GetSetting(r.Context(), AdminPasswordKey)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusForbidden, "admin login not configured")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	if err := auth.CheckPassword(hash, body.Password); err != nil {
		h.logger.Warn("admin login rejected")
		Error(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := h.verifier.Generate(adminSubject, adminSessionTTL)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("admin logged in")
	JSON(w, http.StatusOK, map[string]string{"token": token})
}

// requireAdmin guards admin routes with the login token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.verifier == nil {
			Error(w, http.StatusUnauthorized, "admin login not configured")
			return
		}

		token := auth.BearerToken(r)
		if token == "" {
			Error(w, http.StatusUnauthorized, "missing token")
			return
		}

		subject, err := h.verifier.Verify(token)
		if err != nil || subject != adminSubject {
			Error(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type userView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	APIKey        string `json:"api_key,omitempty"`
	NotifyEnabled bool   `json:"notify_enabled"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
}

func toUserView(u *store.User, includeKey bool) userView {
	v := userView{
		ID:            u.ID,
		Name:          u.Name,
		NotifyEnabled: u.NotifyEnabled,
		Active:        u.Active,
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
	}
	if includeKey {
		v.APIKey = u.APIKey
	}
	return v
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"

	users, err := h.directory.List(r.Context(), includeDisabled)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u, false))
	}
	JSON(w, http.StatusOK, views)
}

type createUserBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createUser registers a user and returns their API key. The key is only
// shown here and on regeneration.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body createUserBody
	if err := decodeJSON(r, &body); err != nil || body.ID == "" {
		Error(w, http.StatusBadRequest, "user id required")
		return
	}

	user, err := h.directory.Register(r.Context(), body.ID, body.Name)
	if err != nil {
		h.logger.Error("failed to register user", "user", body.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	JSON(w, http.StatusOK, toUserView(user, true))
}

func (h *Handler) setUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := h.directory.SetActive(r.Context(), id, active)
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			Error(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Handler) regenerateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key, err := h.directory.RegenerateKey(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to regenerate key")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"api_key": key})
}

type notifyBody struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) setUserNotify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body notifyBody
	if err := decodeJSON(r, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.directory.SetNotify(r.Context(), id, body.Enabled)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
