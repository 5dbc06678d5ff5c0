// ABOUTME: User directory mapping opaque API credentials to logical identities
// ABOUTME: Handles key generation, identity registration and fail-closed resolution

package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/intent-bridge/internal/store"
)

// ErrUnknownCredential is returned when a non-empty credential does not
// resolve to an active user. Callers computing visibility must treat this as
// "sees nothing", never as a fallback to the public scope.
var ErrUnknownCredential = errors.New("unknown credential")

// apiKeyPrefix marks generated credentials so they are recognizable in
// configs and logs.
const apiKeyPrefix = "uk_"

// Directory resolves credentials to users and manages their lifecycle.
// Reads always hit the store so enabling/disabling a user takes effect on the
// next resolution; no cache sits in between.
type Directory struct {
	store  store.UserStore
	logger *slog.Logger
}

// New creates a user directory backed by the given store.
func New(userStore store.UserStore) *Directory {
	return &Directory{
		store:  userStore,
		logger: slog.Default().With("component", "directory"),
	}
}

// Resolve maps an opaque credential to a user identity.
//
//   - empty credential: (nil, nil) — the caller is anonymous and sees only
//     public requests.
//   - credential of an active user: that user.
//   - anything else: ErrUnknownCredential.
func (d *Directory) Resolve(ctx context.Context, credential string) (*store.User, error) {
	if credential == "" {
		return nil, nil
	}

	user, err := d.store.GetUserByAPIKey(ctx, credential)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownCredential
	}
	if err != nil {
		return nil, fmt.Errorf("resolving credential: %w", err)
	}
	return user, nil
}

// Register performs the identity exchange: it creates the user with a fresh
// API key on first sight, or refreshes the display name of an existing user.
// The existing key is kept on re-registration so agents do not lose access.
func (d *Directory) Register(ctx context.Context, id, name string) (*store.User, error) {
	if id == "" {
		return nil, errors.New("user id required")
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generating api key: %w", err)
	}

	user := &store.User{
		ID:            id,
		Name:          name,
		APIKey:        apiKey,
		NotifyEnabled: true,
		Active:        true,
	}
	err = d.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicateUser) {
		if name != "" {
			if err := d.store.UpdateUserName(ctx, id, name); err != nil {
				return nil, fmt.Errorf("updating user name: %w", err)
			}
		}
		return d.store.GetUser(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	d.logger.Info("registered user", "user", id)
	return user, nil
}

// RegenerateKey replaces a user's credential and returns the new key.
// The old key stops resolving immediately.
func (d *Directory) RegenerateKey(ctx context.Context, id string) (string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	if err := d.store.UpdateUserAPIKey(ctx, id, apiKey); err != nil {
		return "", err
	}
	d.logger.Info("regenerated api key", "user", id)
	return apiKey, nil
}

// SetActive enables or disables a user.
func (d *Directory) SetActive(ctx context.Context, id string, active bool) error {
	if err := d.store.SetUserActive(ctx, id, active); err != nil {
		return err
	}
	d.logger.Info("updated user state", "user", id, "active", active)
	return nil
}

// SetNotify toggles chat-relay notifications for a user.
func (d *Directory) SetNotify(ctx context.Context, id string, enabled bool) error {
	return d.store.SetUserNotify(ctx, id, enabled)
}

// List returns known users.
func (d *Directory) List(ctx context.Context, includeDisabled bool) ([]*store.User, error) {
	return d.store.ListUsers(ctx, includeDisabled)
}

// GenerateAPIKey produces a fresh uk_-prefixed credential from 16 random bytes.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
