// ABOUTME: SQLite operations for user identities and the settings key-value table
// ABOUTME: Users are soft-disabled only; credentials are unique and regenerable

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateUser inserts a new user. Returns ErrDuplicateUser if the id or API key
// is already taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO users (id, name, api_key, notify_enabled, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.APIKey,
		boolToInt(user.NotifyEnabled),
		boolToInt(user.Active),
		createdAt.Format(time.RFC3339Nano),
		updatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID regardless of active state.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, name, api_key, notify_enabled, is_active, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	return s.queryUser(ctx, query, id)
}

// GetUserByAPIKey retrieves an active user by credential. Disabled users never
// match, which is what makes revocation effective immediately.
func (s *SQLiteStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	query := `
		SELECT id, name, api_key, notify_enabled, is_active, created_at, updated_at
		FROM users
		WHERE api_key = ? AND is_active = 1
	`
	return s.queryUser(ctx, query, apiKey)
}

func (s *SQLiteStore) queryUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	var notify, active int
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.APIKey,
		&notify,
		&active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.NotifyEnabled = notify != 0
	user.Active = active != 0

	user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}

// UpdateUserAPIKey replaces a user's credential.
func (s *SQLiteStore) UpdateUserAPIKey(ctx context.Context, id, apiKey string) error {
	return s.updateUserField(ctx, id, "api_key = ?", apiKey)
}

// UpdateUserName updates a user's display name.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, id, name string) error {
	return s.updateUserField(ctx, id, "name = ?", name)
}

// SetUserActive enables or disables a user. Disabling invalidates the
// credential for scoping but keeps historical requests intact.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	return s.updateUserField(ctx, id, "is_active = ?", boolToInt(active))
}

// SetUserNotify toggles chat-relay notifications for a user.
func (s *SQLiteStore) SetUserNotify(ctx context.Context, id string, enabled bool) error {
	return s.updateUserField(ctx, id, "notify_enabled = ?", boolToInt(enabled))
}

func (s *SQLiteStore) updateUserField(ctx context.Context, id, set string, value any) error {
	query := fmt.Sprintf("UPDATE users SET %s, updated_at = ? WHERE id = ?", set)
	res, err := s.db.ExecContext(ctx, query, value, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("updating user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns users ordered by creation time, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context, includeDisabled bool) ([]*User, error) {
	query := `
		SELECT id, name, api_key, notify_enabled, is_active, created_at, updated_at
		FROM users
	`
	if !includeDisabled {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var notify, active int
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&user.ID, &user.Name, &user.APIKey, &notify, &active, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.NotifyEnabled = notify != 0
		user.Active = active != 0
		if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if user.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// GetSetting returns the value for a settings key, or ErrNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying setting: %w", err)
	}
	return value, nil
}

// SetSetting stores or replaces a settings value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing setting: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
