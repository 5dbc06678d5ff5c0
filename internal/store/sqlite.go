// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides request/user persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS requests (
			id           TEXT PRIMARY KEY,
			question     TEXT NOT NULL,
			answer       TEXT NOT NULL DEFAULT '',
			image        TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'PENDING',
			owner_id     TEXT,
			created_at   TEXT NOT NULL,
			completed_at TEXT,

			CHECK (status IN ('PENDING', 'COMPLETED', 'DISMISSED'))
		);

		CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
		CREATE INDEX IF NOT EXISTS idx_requests_owner ON requests(owner_id);
		CREATE INDEX IF NOT EXISTS idx_requests_completed ON requests(status, completed_at);

		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			api_key        TEXT UNIQUE NOT NULL,
			notify_enabled INTEGER NOT NULL DEFAULT 0,
			is_active      INTEGER NOT NULL DEFAULT 1,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_api_key ON users(api_key);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateRequest inserts a new pending request.
// Returns ErrDuplicateRequest if the id already exists.
func (s *SQLiteStore) CreateRequest(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO requests (id, question, answer, image, status, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	status := req.Status
	if status == "" {
		status = StatusPending
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.Question,
		req.Answer,
		req.Image,
		status,
		req.OwnerID,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("inserting request: %w", err)
	}

	return nil
}

// GetRequest retrieves a request by ID.
// Returns ErrNotFound if the request doesn't exist.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	query := `
		SELECT id, question, answer, image, status, owner_id, created_at, completed_at
		FROM requests
		WHERE id = ?
	`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying request: %w", err)
	}
	return req, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanning
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	var createdAtStr string
	var completedAtStr sql.NullString

	err := row.Scan(
		&req.ID,
		&req.Question,
		&req.Answer,
		&req.Image,
		&req.Status,
		&req.OwnerID,
		&createdAtStr,
		&completedAtStr,
	)
	if err != nil {
		return nil, err
	}

	req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if completedAtStr.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		req.CompletedAt = &t
	}

	return &req, nil
}

// ListPendingRequests returns PENDING requests in insertion order.
// A nil owner matches only unowned rows; a non-nil owner matches only that owner's rows.
func (s *SQLiteStore) ListPendingRequests(ctx context.Context, owner *string) ([]*Request, error) {
	query := `
		SELECT id, question, answer, image, status, owner_id, created_at, completed_at
		FROM requests
		WHERE status = 'PENDING' AND owner_id IS ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying pending requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// OldestPendingForOwner returns the oldest PENDING request owned by ownerID,
// or ErrNotFound if the owner has no pending requests.
func (s *SQLiteStore) OldestPendingForOwner(ctx context.Context, ownerID string) (*Request, error) {
	query := `
		SELECT id, question, answer, image, status, owner_id, created_at, completed_at
		FROM requests
		WHERE status = 'PENDING' AND owner_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, ownerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying oldest pending request: %w", err)
	}
	return req, nil
}

func collectRequests(rows *sql.Rows) ([]*Request, error) {
	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return requests, nil
}

// CompleteRequest transitions a PENDING request to COMPLETED with the given
// answer. The WHERE status='PENDING' guard makes the transition atomic: the
// first completion wins and later calls are no-ops that preserve the stored
// answer. Returns ErrNotFound if the id does not exist at all.
func (s *SQLiteStore) CompleteRequest(ctx context.Context, id, answer, image string) error {
	query := `
		UPDATE requests
		SET answer = ?, image = ?, status = 'COMPLETED', completed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	res, err := s.db.ExecContext(ctx, query, answer, image, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("completing request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: either the row is gone or it is already terminal.
	if _, err := s.GetRequest(ctx, id); err != nil {
		return err
	}
	return nil
}

// DismissRequest transitions a PENDING request to DISMISSED, using the same
// single-writer-wins guard as CompleteRequest.
func (s *SQLiteStore) DismissRequest(ctx context.Context, id string) error {
	query := `
		UPDATE requests
		SET status = 'DISMISSED', completed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	res, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("dismissing request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetRequest(ctx, id); err != nil {
		return err
	}
	return nil
}

// DeleteRequest removes a request unconditionally. Missing rows are not an error.
func (s *SQLiteStore) DeleteRequest(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return nil
}

// DeleteCompletedBefore removes COMPLETED requests whose completed_at is older
// than the given number of days. days <= 0 disables sweeping entirely.
func (s *SQLiteStore) DeleteCompletedBefore(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM requests WHERE status = 'COMPLETED' AND completed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting completed requests: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// ListHistory returns recent COMPLETED requests, newest first.
// limit <= 0 falls back to 50.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, question, answer, image, status, owner_id, created_at, completed_at
		FROM requests
		WHERE status = 'COMPLETED'
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}
