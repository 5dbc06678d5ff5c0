package relay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intent-bridge/internal/directory"
	"github.com/2389/intent-bridge/internal/store"
)

func setupDispatcher(t *testing.T) (*Dispatcher, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewDispatcher(s, s), s
}

func registerUser(t *testing.T, s *store.SQLiteStore, id string) *store.User {
	t.Helper()
	user, err := directory.New(s).Register(context.Background(), id, "")
	require.NoError(t, err)
	return user
}

func addPending(t *testing.T, s *store.SQLiteStore, id, question string, owner *string) {
	t.Helper()
	require.NoError(t, s.CreateRequest(context.Background(), &store.Request{
		ID:       id,
		Question: question,
		Status:   store.StatusPending,
		OwnerID:  owner,
	}))
}

func TestHandleInbound_CompletesOldestPending(t *testing.T) {
	d, s := setupDispatcher(t)
	ctx := context.Background()

	alice := registerUser(t, s, "@alice:example.org")
	addPending(t, s, "req-1", "first?", &alice.ID)
	addPending(t, s, "req-2", "second?", &alice.ID)

	reply, err := d.HandleInbound(ctx, "@alice:example.org", "yes to the first")
	require.NoError(t, err)
	assert.Equal(t, ackReply, reply)

	first, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, first.Status)
	assert.Equal(t, "yes to the first", first.Answer)

	second, err := s.GetRequest(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, second.Status)
}

func TestHandleInbound_SequentialRepliesDrainQueue(t *testing.T) {
	d, s := setupDispatcher(t)
	ctx := context.Background()

	alice := registerUser(t, s, "@alice:example.org")
	addPending(t, s, "req-1", "first?", &alice.ID)
	addPending(t, s, "req-2", "second?", &alice.ID)

	_, err := d.HandleInbound(ctx, "@alice:example.org", "answer one")
	require.NoError(t, err)
	_, err = d.HandleInbound(ctx, "@alice:example.org", "answer two")
	require.NoError(t, err)

	second, err := s.GetRequest(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, "answer two", second.Answer)
}

func TestHandleInbound_UnknownSenderDropped(t *testing.T) {
	d, s := setupDispatcher(t)
	ctx := context.Background()

	addPending(t, s, "req-1", "public?", nil)

	reply, err := d.HandleInbound(ctx, "@stranger:example.org", "I know the answer")
	require.NoError(t, err)
	assert.Empty(t, reply)

	// The public request must remain untouched.
	req, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status)
}

func TestHandleInbound_DisabledSenderDropped(t *testing.T) {
	d, s := setupDispatcher(t)
	ctx := context.Background()

	alice := registerUser(t, s, "@alice:example.org")
	addPending(t, s, "req-1", "q?", &alice.ID)
	require.NoError(t, s.SetUserActive(ctx, alice.ID, false))

	reply, err := d.HandleInbound(ctx, "@alice:example.org", "too late")
	require.NoError(t, err)
	assert.Empty(t, reply)

	req, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status)
}

func TestHandleInbound_NoPendingRequest(t *testing.T) {
	d, s := setupDispatcher(t)

	registerUser(t, s, "@alice:example.org")

	reply, err := d.HandleInbound(context.Background(), "@alice:example.org", "hello?")
	require.NoError(t, err)
	assert.Equal(t, noPendingReply, reply)
}

func TestHandleInbound_DoesNotTouchOtherUsersRequests(t *testing.T) {
	d, s := setupDispatcher(t)
	ctx := context.Background()

	registerUser(t, s, "@alice:example.org")
	bob := registerUser(t, s, "@bob:example.org")
	addPending(t, s, "req-bob", "for bob?", &bob.ID)

	reply, err := d.HandleInbound(ctx, "@alice:example.org", "not mine")
	require.NoError(t, err)
	assert.Equal(t, noPendingReply, reply)

	req, err := s.GetRequest(ctx, "req-bob")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status)
}

func TestHandleInbound_EmptyBodyIgnored(t *testing.T) {
	d, s := setupDispatcher(t)

	alice := registerUser(t, s, "@alice:example.org")
	addPending(t, s, "req-1", "q?", &alice.ID)

	reply, err := d.HandleInbound(context.Background(), "@alice:example.org", "")
	require.NoError(t, err)
	assert.Empty(t, reply)

	req, err := s.GetRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status)
}

func TestNoopRelay_NeverDelivers(t *testing.T) {
	assert.False(t, NoopRelay{}.Push(context.Background(), "u", "r", "q"))
}
