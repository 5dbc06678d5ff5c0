package directory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intent-bridge/internal/store"
)

func setupDirectory(t *testing.T) (*Directory, *store.SQLiteStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestDirectory_Register(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	user, err := dir.Register(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
	assert.True(t, user.Active)
	assert.True(t, strings.HasPrefix(user.APIKey, "uk_"))
	assert.Len(t, user.APIKey, len("uk_")+32)
}

func TestDirectory_Register_ExistingKeepsKey(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	first, err := dir.Register(ctx, "alice", "Alice")
	require.NoError(t, err)

	second, err := dir.Register(ctx, "alice", "Alice L.")
	require.NoError(t, err)

	assert.Equal(t, first.APIKey, second.APIKey)
	assert.Equal(t, "Alice L.", second.Name)
}

func TestDirectory_Resolve(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	user, err := dir.Register(ctx, "alice", "Alice")
	require.NoError(t, err)

	resolved, err := dir.Resolve(ctx, user.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.ID)
}

func TestDirectory_Resolve_Anonymous(t *testing.T) {
	dir, _ := setupDirectory(t)

	resolved, err := dir.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestDirectory_Resolve_UnknownCredential(t *testing.T) {
	dir, _ := setupDirectory(t)

	_, err := dir.Resolve(context.Background(), "uk_bogus")
	assert.ErrorIs(t, err, ErrUnknownCredential)
}

func TestDirectory_Resolve_DisabledUser(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	user, err := dir.Register(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, dir.SetActive(ctx, "alice", false))

	// A disabled user's credential is indistinguishable from an unknown one.
	_, err = dir.Resolve(ctx, user.APIKey)
	assert.ErrorIs(t, err, ErrUnknownCredential)

	require.NoError(t, dir.SetActive(ctx, "alice", true))
	resolved, err := dir.Resolve(ctx, user.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.ID)
}

func TestDirectory_RegenerateKey(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	user, err := dir.Register(ctx, "alice", "Alice")
	require.NoError(t, err)

	newKey, err := dir.RegenerateKey(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, user.APIKey, newKey)

	_, err = dir.Resolve(ctx, user.APIKey)
	assert.ErrorIs(t, err, ErrUnknownCredential)

	resolved, err := dir.Resolve(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.ID)
}

func TestDirectory_RegenerateKey_NotFound(t *testing.T) {
	dir, _ := setupDirectory(t)

	_, err := dir.RegenerateKey(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
