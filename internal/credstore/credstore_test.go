package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"posto/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "credstore_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	store, err := Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	creds := Credentials{
		User:  models.User{ID: 42, Username: "alice", Email: "alice@example.com"},
		Token: "tok-123",
	}
	require.NoError(t, store.Save(creds))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, creds.User, got.User)
	require.Equal(t, creds.Token, got.Token)
	require.False(t, got.SavedAt.IsZero())
}

func TestStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Credentials{User: models.User{ID: 1, Username: "a"}, Token: "t1"}))
	require.NoError(t, store.Save(Credentials{User: models.User{ID: 2, Username: "b"}, Token: "t2"}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(2), got.User.ID)
	require.Equal(t, "t2", got.Token)
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Credentials{User: models.User{ID: 1, Username: "a"}, Token: "t"}))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials after Clear, got %v", err)
	}

	// Clearing again must not fail.
	require.NoError(t, store.Clear())
}
