// Package auth provides credential handling for intent-bridge.
//
// Two kinds of credentials exist:
//
//   - Opaque user API keys (uk_ prefixed), resolved through the user
//     directory for request scoping. This package only extracts them from
//     HTTP requests; resolution lives in internal/directory.
//   - Admin session JWTs (HS256), generated after a successful password
//     login and verified on admin endpoints.
package auth
