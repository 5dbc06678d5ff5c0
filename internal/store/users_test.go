package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := &User{
		ID:     "alice",
		Name:   "Alice",
		APIKey: "uk_abc123",
		Active: true,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	retrieved, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", retrieved.Name)
	assert.Equal(t, "uk_abc123", retrieved.APIKey)
	assert.True(t, retrieved.Active)
	assert.False(t, retrieved.NotifyEnabled)
}

func TestStore_CreateUser_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_1", Active: true}))

	err := store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_2", Active: true})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	// Same key for a different user is also rejected.
	err = store.CreateUser(ctx, &User{ID: "bob", APIKey: "uk_1", Active: true})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestStore_GetUserByAPIKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_1", Active: true}))

	user, err := store.GetUserByAPIKey(ctx, "uk_1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)

	_, err = store.GetUserByAPIKey(ctx, "uk_wrong")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetUserByAPIKey_DisabledUserHidden(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_1", Active: true}))
	require.NoError(t, store.SetUserActive(ctx, "alice", false))

	// The credential stops resolving the moment the user is disabled.
	_, err := store.GetUserByAPIKey(ctx, "uk_1")
	assert.ErrorIs(t, err, ErrNotFound)

	// The user record itself survives.
	user, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, user.Active)

	// Re-enabling restores resolution.
	require.NoError(t, store.SetUserActive(ctx, "alice", true))
	_, err = store.GetUserByAPIKey(ctx, "uk_1")
	assert.NoError(t, err)
}

func TestStore_UpdateUserAPIKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_old", Active: true}))
	require.NoError(t, store.UpdateUserAPIKey(ctx, "alice", "uk_new"))

	_, err := store.GetUserByAPIKey(ctx, "uk_old")
	assert.ErrorIs(t, err, ErrNotFound)

	user, err := store.GetUserByAPIKey(ctx, "uk_new")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
}

func TestStore_UpdateUser_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.UpdateUserAPIKey(ctx, "ghost", "uk_x"), ErrNotFound)
	assert.ErrorIs(t, store.SetUserActive(ctx, "ghost", true), ErrNotFound)
	assert.ErrorIs(t, store.SetUserNotify(ctx, "ghost", true), ErrNotFound)
}

func TestStore_SetUserNotify(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_1", Active: true}))
	require.NoError(t, store.SetUserNotify(ctx, "alice", true))

	user, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.NotifyEnabled)
}

func TestStore_ListUsers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{ID: "alice", APIKey: "uk_1", Active: true}))
	require.NoError(t, store.CreateUser(ctx, &User{ID: "bob", APIKey: "uk_2", Active: true}))
	require.NoError(t, store.SetUserActive(ctx, "bob", false))

	active, err := store.ListUsers(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].ID)

	all, err := store.ListUsers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Settings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetSetting(ctx, "admin_password_hash", "v1"))
	require.NoError(t, store.SetSetting(ctx, "admin_password_hash", "v2"))

	value, err := store.GetSetting(ctx, "admin_password_hash")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}
