// ABOUTME: Broker orchestrating one question/answer exchange per agent call
// ABOUTME: Creates the pending request, races delivery channels and resolves one terminal outcome

package broker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/intent-bridge/internal/directory"
	"github.com/2389/intent-bridge/internal/store"
)

// Terminal outcome of an Ask call. Exactly one is returned per call.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Texts returned to the agent for non-answer outcomes.
const (
	dismissedNotice = "User dismissed this request."
	timeoutNotice   = "Timeout: No response received."
)

// createAttempts bounds retries on request id collisions.
const createAttempts = 5

// ImagePart is an inline image attached to an answer.
type ImagePart struct {
	MimeType string
	Data     []byte
}

// Result is the terminal outcome of one Ask call. Text is always set: the
// answer, a dismissal notice or a timeout notice.
type Result struct {
	RequestID string
	Outcome   Outcome
	Text      string
	Image     *ImagePart
}

// Relay is the outbound half of the chat relay consumed by the broker.
// Push is best-effort: false means the question was not delivered and the
// exchange proceeds through polling only.
type Relay interface {
	Push(ctx context.Context, userID, requestID, question string) bool
}

// Config holds broker timing knobs.
type Config struct {
	// Timeout is the per-call wait ceiling.
	Timeout time.Duration
	// PollInterval is the sleep between store reads.
	PollInterval time.Duration
	// HistoryDays is the retention window for completed requests.
	// Zero or negative disables sweeping.
	HistoryDays int
}

// Broker creates pending requests and waits for a human to resolve them
// through the web UI or the chat relay. One Ask call handles one exchange;
// many may be in flight concurrently.
type Broker struct {
	store     store.RequestStore
	directory *directory.Directory
	relay     Relay
	cfg       Config
	logger    *slog.Logger

	// newID generates request ids; replaced in tests to force collisions.
	newID func() string
}

// New creates a broker. relay may be nil when no chat relay is configured.
func New(requestStore store.RequestStore, dir *directory.Directory, relay Relay, cfg Config) *Broker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3000 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &Broker{
		store:     requestStore,
		directory: dir,
		relay:     relay,
		cfg:       cfg,
		logger:    slog.Default().With("component", "broker"),
		newID:     uuid.NewString,
	}
}

// Ask submits a question on behalf of an agent and blocks until a human
// answers or dismisses it, or the timeout elapses. The credential scopes the
// request to a user; an empty or unresolvable credential yields a public
// request. Ask never surfaces human-side races as errors: the agent always
// receives a terminal Result unless the context is cancelled or the request
// cannot be created at all.
func (b *Broker) Ask(ctx context.Context, question, credential string) (*Result, error) {
	owner := b.resolveOwner(ctx, credential)

	req, err := b.createRequest(ctx, question, owner)
	if err != nil {
		return nil, err
	}

	b.logger.Info("question stored", "request", req.ID, "owner", ownerLabel(owner), "question", truncate(question, 50))

	if owner != nil && owner.NotifyEnabled && b.relay != nil {
		if b.relay.Push(ctx, owner.ID, req.ID, question) {
			b.logger.Info("relay notification sent", "request", req.ID, "user", owner.ID)
		} else {
			b.logger.Warn("relay push failed, continuing with polling only", "request", req.ID, "user", owner.ID)
		}
	}

	return b.await(ctx, req.ID)
}

// resolveOwner maps the credential to a user for scoping. Unresolvable
// credentials fall back to a public request at creation time; the strict
// fail-closed rule applies to visibility, not submission.
func (b *Broker) resolveOwner(ctx context.Context, credential string) *store.User {
	if b.directory == nil || credential == "" {
		return nil
	}

	owner, err := b.directory.Resolve(ctx, credential)
	if errors.Is(err, directory.ErrUnknownCredential) {
		b.logger.Warn("credential did not resolve, creating public request")
		return nil
	}
	if err != nil {
		b.logger.Warn("credential resolution failed, creating public request", "error", err)
		return nil
	}
	return owner
}

func (b *Broker) createRequest(ctx context.Context, question string, owner *store.User) (*store.Request, error) {
	var ownerID *string
	if owner != nil {
		ownerID = &owner.ID
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		req := &store.Request{
			ID:       b.newID(),
			Question: question,
			Status:   store.StatusPending,
			OwnerID:  ownerID,
		}

		err := b.store.CreateRequest(ctx, req)
		if err == nil {
			return req, nil
		}
		if errors.Is(err, store.ErrDuplicateRequest) {
			b.logger.Warn("request id collision, retrying", "request", req.ID)
			continue
		}
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return nil, fmt.Errorf("creating request: exhausted %d id attempts", createAttempts)
}

// await polls the store until the request reaches a terminal state or the
// timeout elapses. Store errors are transient: logged and retried on the
// next tick, so a flaky read surfaces as a timeout rather than a hang or an
// error to the agent.
func (b *Broker) await(ctx context.Context, id string) (*Result, error) {
	deadline := time.Now().Add(b.cfg.Timeout)
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := b.store.GetRequest(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Row vanished underneath us; keep polling until the timeout.
			b.logger.Warn("pending request disappeared", "request", id)
		case err != nil:
			b.logger.Warn("poll read failed, will retry", "request", id, "error", err)
		case req.Status == store.StatusDismissed:
			// Dismissed exchanges leave no history.
			if err := b.store.DeleteRequest(ctx, id); err != nil {
				b.logger.Warn("failed to delete dismissed request", "request", id, "error", err)
			}
			b.logger.Info("request dismissed", "request", id)
			return &Result{RequestID: id, Outcome: OutcomeDismissed, Text: dismissedNotice}, nil
		case req.Status == store.StatusCompleted && req.Answer != "":
			b.logger.Info("reply received", "request", id, "answer", truncate(req.Answer, 30), "image", req.Image != "")
			b.Sweep(ctx)
			return &Result{
				RequestID: id,
				Outcome:   OutcomeAnswered,
				Text:      req.Answer,
				Image:     decodeImage(req.Image, b.logger),
			}, nil
		}

		if time.Now().After(deadline) {
			// Timed-out exchanges leave no history either.
			if err := b.store.DeleteRequest(ctx, id); err != nil {
				b.logger.Warn("failed to delete timed-out request", "request", id, "error", err)
			}
			b.logger.Info("request timed out", "request", id)
			return &Result{RequestID: id, Outcome: OutcomeTimedOut, Text: timeoutNotice}, nil
		}

		select {
		case <-ctx.Done():
			// The agent went away; don't leave an orphaned pending row.
			if err := b.store.DeleteRequest(context.WithoutCancel(ctx), id); err != nil {
				b.logger.Warn("failed to delete abandoned request", "request", id, "error", err)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// decodeImage parses a data-URL image payload into an ImagePart.
// Malformed payloads are logged and dropped; the text answer still stands.
func decodeImage(dataURL string, logger *slog.Logger) *ImagePart {
	if dataURL == "" {
		return nil
	}
	if !strings.HasPrefix(dataURL, "data:image") {
		logger.Warn("unexpected image payload, dropping", "prefix", truncate(dataURL, 20))
		return nil
	}

	header, encoded, ok := strings.Cut(dataURL, ",")
	if !ok {
		logger.Warn("malformed image data URL, dropping")
		return nil
	}

	mimeType := strings.TrimPrefix(header, "data:")
	mimeType = strings.TrimSuffix(mimeType, ";base64")

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Warn("failed to decode image payload", "error", err)
		return nil
	}

	return &ImagePart{MimeType: mimeType, Data: data}
}

func ownerLabel(owner *store.User) string {
	if owner == nil {
		return "public"
	}
	return owner.ID
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
