// ABOUTME: Matrix chat relay built on maunium.net/go/mautrix
// ABOUTME: Pushes questions into per-user DM rooms and feeds replies to the dispatcher

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/intent-bridge/internal/dedupe"
	"github.com/2389/intent-bridge/internal/store"
)

// networkTimeout bounds individual Matrix API calls so a slow homeserver
// cannot stall a push or shutdown.
const networkTimeout = 10 * time.Second

// sendTimeout is longer since question bodies can be large.
const sendTimeout = 30 * time.Second

// dmRoomKeyPrefix namespaces cached DM room ids in the settings table.
const dmRoomKeyPrefix = "relay.room."

// Dedupe window for re-delivered sync events.
const (
	dedupeTTL     = 5 * time.Minute
	dedupeMaxSize = 1000
)

// Config holds the Matrix connection parameters.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// MatrixRelay delivers questions to users as direct messages and completes
// requests from their replies. DM room ids are cached in the settings table
// so rooms survive restarts.
type MatrixRelay struct {
	client     *mautrix.Client
	userID     id.UserID
	dispatcher *Dispatcher
	settings   store.SettingsStore
	seen       *dedupe.Cache
	logger     *slog.Logger
}

// NewMatrixRelay creates a relay connected to the configured homeserver.
func NewMatrixRelay(cfg Config, dispatcher *Dispatcher, settings store.SettingsStore) (*MatrixRelay, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &MatrixRelay{
		client:     client,
		userID:     id.UserID(cfg.UserID),
		dispatcher: dispatcher,
		settings:   settings,
		seen:       dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:     slog.Default().With("component", "matrix-relay"),
	}, nil
}

// Run starts the sync loop and blocks until the context is cancelled or the
// sync fails.
func (r *MatrixRelay) Run(ctx context.Context) error {
	r.logger.Info("starting matrix relay", "homeserver", r.client.HomeserverURL.String(), "user_id", r.userID.String())
	defer r.seen.Close()

	syncer, ok := r.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", r.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, r.handleMessageEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- r.client.SyncWithContext(ctx)
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutting down matrix relay")
		return nil
	case err := <-syncErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("matrix sync failed: %w", err)
		}
		return nil
	}
}

// Push delivers a question to the user's DM room. Returns false when the
// room cannot be resolved or the send fails; the caller falls back to
// polling-only delivery.
func (r *MatrixRelay) Push(ctx context.Context, userID, requestID, question string) bool {
	roomID, err := r.dmRoom(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to resolve dm room", "user", userID, "error", err)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := r.client.SendText(sendCtx, roomID, question); err != nil {
		r.logger.Warn("failed to send question", "user", userID, "room", roomID.String(), "error", err)
		return false
	}

	r.logger.Info("question delivered", "user", userID, "request", requestID, "room", roomID.String())
	return true
}

// dmRoom returns the DM room for a user, creating and caching one on first
// contact.
func (r *MatrixRelay) dmRoom(ctx context.Context, userID string) (id.RoomID, error) {
	key := dmRoomKeyPrefix + userID

	cached, err := r.settings.GetSetting(ctx, key)
	if err == nil && cached != "" {
		return id.RoomID(cached), nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("reading room cache: %w", err)
	}

	createCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	resp, err := r.client.CreateRoom(createCtx, &mautrix.ReqCreateRoom{
		Invite:   []id.UserID{id.UserID(userID)},
		IsDirect: true,
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return "", fmt.Errorf("creating dm room: %w", err)
	}

	if err := r.settings.SetSetting(ctx, key, resp.RoomID.String()); err != nil {
		// Room exists but the cache write failed; the next push creates a
		// second room rather than failing this one.
		r.logger.Warn("failed to cache dm room", "user", userID, "error", err)
	}

	r.logger.Info("created dm room", "user", userID, "room", resp.RoomID.String())
	return resp.RoomID, nil
}

// handleMessageEvent feeds inbound text messages to the dispatcher and sends
// its reply back to the same room.
func (r *MatrixRelay) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == r.userID {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	if r.seen.CheckAndMark(evt.ID.String()) {
		r.logger.Debug("dropping duplicate event", "event", evt.ID.String())
		return
	}

	sender := evt.Sender.String()
	r.logger.Info("received message", "sender", sender, "room", evt.RoomID.String())

	reply, err := r.dispatcher.HandleInbound(ctx, sender, content.Body)
	if err != nil {
		r.logger.Error("failed to handle inbound message", "sender", sender, "error", err)
		return
	}
	if reply == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := r.client.SendText(sendCtx, evt.RoomID, reply); err != nil {
		r.logger.Warn("failed to send reply", "room", evt.RoomID.String(), "error", err)
	}
}
