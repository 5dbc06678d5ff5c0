// ABOUTME: Store interface and data types for intent-bridge persistence
// ABOUTME: Defines Request, User structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateRequest is returned when trying to create a request that already exists
var ErrDuplicateRequest = errors.New("request already exists")

// ErrDuplicateUser is returned when trying to create a user that already exists
var ErrDuplicateUser = errors.New("user already exists")

// Request status constants
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusDismissed = "DISMISSED"
)

// Request represents one question/answer exchange between an agent and a human.
// OwnerID is nil for public (unscoped) requests.
type Request struct {
	ID          string
	Question    string
	Answer      string
	Image       string // optional data-URL image attached to the answer
	Status      string
	OwnerID     *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// User is an identity with an opaque bearer credential, used to scope
// request visibility. Users are soft-disabled, never hard-deleted.
type User struct {
	ID            string
	Name          string
	APIKey        string
	NotifyEnabled bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RequestStore defines persistence operations for question/answer exchanges
type RequestStore interface {
	// CreateRequest inserts a new request. Returns ErrDuplicateRequest if the
	// id already exists.
	CreateRequest(ctx context.Context, req *Request) error

	// GetRequest returns the request with the given id, or ErrNotFound.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// ListPendingRequests returns PENDING requests in insertion order.
	// A nil owner returns only unowned (public) rows; a non-nil owner returns
	// only rows belonging to that owner.
	ListPendingRequests(ctx context.Context, owner *string) ([]*Request, error)

	// OldestPendingForOwner returns the oldest PENDING request for the given
	// owner, or ErrNotFound if there is none.
	OldestPendingForOwner(ctx context.Context, ownerID string) (*Request, error)

	// CompleteRequest marks a PENDING request COMPLETED with the given answer.
	// If the request is already terminal the call is a no-op and the stored
	// answer is preserved. Returns ErrNotFound if the id does not exist.
	CompleteRequest(ctx context.Context, id, answer, image string) error

	// DismissRequest marks a PENDING request DISMISSED. Idempotent like
	// CompleteRequest.
	DismissRequest(ctx context.Context, id string) error

	// DeleteRequest removes a request unconditionally. Deleting a missing
	// request is not an error.
	DeleteRequest(ctx context.Context, id string) error

	// DeleteCompletedBefore removes COMPLETED requests whose completed_at is
	// older than the given number of days. days <= 0 disables sweeping and
	// returns 0.
	DeleteCompletedBefore(ctx context.Context, days int) (int64, error)

	// ListHistory returns recent COMPLETED requests, newest first.
	ListHistory(ctx context.Context, limit int) ([]*Request, error)
}

// UserStore defines persistence operations for users
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// GetUserByAPIKey returns the active user holding the given key, or
	// ErrNotFound. Disabled users never match.
	GetUserByAPIKey(ctx context.Context, apiKey string) (*User, error)
	UpdateUserAPIKey(ctx context.Context, id, apiKey string) error
	UpdateUserName(ctx context.Context, id, name string) error
	SetUserActive(ctx context.Context, id string, active bool) error
	SetUserNotify(ctx context.Context, id string, enabled bool) error
	ListUsers(ctx context.Context, includeDisabled bool) ([]*User, error)
}

// SettingsStore is a small key-value table for process state that must
// survive restarts (admin password hash, relay room cache).
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store combines all persistence interfaces
type Store interface {
	RequestStore
	UserStore
	SettingsStore

	// Close releases any resources held by the store
	Close() error
}
