// ABOUTME: Inbound chat message dispatch for the relay
// ABOUTME: Matches a sender's reply to their oldest pending request and completes it

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/intent-bridge/internal/store"
)

// Reply texts sent back over the relay.
const (
	ackReply       = "Got it, passing your answer along."
	noPendingReply = "There are no questions waiting for you right now."
)

// Dispatcher routes inbound chat messages to pending requests. A reply from
// a known user completes their oldest pending request; everything else is
// logged and dropped.
type Dispatcher struct {
	requests store.RequestStore
	users    store.UserStore
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given stores.
func NewDispatcher(requests store.RequestStore, users store.UserStore) *Dispatcher {
	return &Dispatcher{
		requests: requests,
		users:    users,
		logger:   slog.Default().With("component", "relay-dispatcher"),
	}
}

// HandleInbound processes one chat message. senderID is the chat address of
// the author, which doubles as the user id. The returned reply is sent back
// over the relay; an empty reply means the message was dropped.
//
// Matching is oldest-first: when a user has several pending requests, a reply
// always answers the one that has been waiting longest.
func (d *Dispatcher) HandleInbound(ctx context.Context, senderID, body string) (string, error) {
	if body == "" {
		return "", nil
	}

	user, err := d.users.GetUser(ctx, senderID)
	if errors.Is(err, store.ErrNotFound) {
		d.logger.Info("dropping message from unknown sender", "sender", senderID)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up sender: %w", err)
	}
	if !user.Active {
		d.logger.Info("dropping message from disabled user", "sender", senderID)
		return "", nil
	}

	req, err := d.requests.OldestPendingForOwner(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		d.logger.Info("no pending request for sender", "sender", senderID)
		return noPendingReply, nil
	}
	if err != nil {
		return "", fmt.Errorf("finding pending request: %w", err)
	}

	if err := d.requests.CompleteRequest(ctx, req.ID, body, ""); err != nil {
		return "", fmt.Errorf("completing request: %w", err)
	}

	d.logger.Info("completed request from chat reply", "request", req.ID, "sender", senderID)
	return ackReply, nil
}
