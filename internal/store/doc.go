// Package store provides persistent storage for intent-bridge using SQLite.
//
// # Data Models
//
//   - Request: One question/answer exchange, keyed by an opaque id. A request
//     is PENDING until a human completes or dismisses it. OwnerID scopes
//     visibility; nil means public/unscoped.
//   - User: An identity with a unique, regenerable API key. Users are
//     soft-disabled only.
//
// # Concurrency
//
// The request state machine relies on a single atomic conditional UPDATE
// (WHERE status='PENDING') for terminal transitions, so the first completion
// from any delivery channel wins and later writes are no-ops. No long-held
// locks or multi-row transactions are needed.
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite) with WAL mode for concurrent
// reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateRequest: Request id already exists
//   - ErrDuplicateUser: User id or API key already exists
//
// All methods accept context.Context for cancellation support.
package store
