// Package directory maps opaque bearer credentials to user identities.
//
// Resolution is strict: a credential that does not belong to an active user
// yields ErrUnknownCredential rather than falling back to the public scope.
// Disabling a user invalidates their credential on the very next lookup
// because resolution always reads through to the store.
package directory
