// Package web serves the human side of the bridge: a small single-page UI
// plus the JSON API behind it.
//
// Pending-request visibility is credential-scoped and fails closed. An
// anonymous caller sees the public pool, a recognized API key sees only that
// user's requests, and an unrecognized key sees nothing. History is a
// deliberate exception: answered requests are visible to anyone who can
// reach the UI, matching its role as a shared audit trail.
//
// Admin endpoints sit behind a password login that issues a short-lived JWT.
// The Streamable HTTP MCP transport is mounted at /mcp when configured.
package web
