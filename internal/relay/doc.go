// Package relay delivers questions to humans over chat and turns their
// replies into request completions.
//
// The Matrix implementation pushes each question into a per-user direct
// message room and runs a sync loop for inbound replies. A reply completes
// the sender's oldest pending request; the store's conditional write makes
// the race against the web UI safe, so the relay never checks who won.
//
// Chat addresses double as user ids: a message from @alice:example.org is
// matched against requests owned by that id. Messages from unknown or
// disabled senders are dropped.
package relay
