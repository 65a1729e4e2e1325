package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"posto/internal/credstore"
	"posto/internal/models"
)

func newTestStore(t *testing.T) (*Store, *credstore.Store) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "session_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	creds, err := credstore.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open credstore: %v", err)
	}
	t.Cleanup(func() { _ = creds.Close() })

	return New(creds, nil), creds
}

func TestStore_AuthenticateAndPersist(t *testing.T) {
	s, creds := newTestStore(t)

	if s.Snapshot().Status != StatusIdle {
		t.Errorf("fresh store not idle: %v", s.Snapshot().Status)
	}

	s.BeginAuth()
	if s.Snapshot().Status != StatusLoading {
		t.Error("BeginAuth did not set loading")
	}

	user := models.User{ID: 1, Username: "alice", Email: "a@example.com"}
	s.SetAuthenticated(user, "tok")

	sess := s.Snapshot()
	if sess.Status != StatusAuthenticated || sess.Token != "tok" || sess.User == nil {
		t.Fatalf("authenticated state wrong: %+v", sess)
	}
	if sess.User.Username != "alice" {
		t.Errorf("wrong user: %+v", sess.User)
	}
	if s.Token() != "tok" {
		t.Errorf("TokenSource returned %q", s.Token())
	}

	stored, err := creds.Load()
	if err != nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	if stored.Token != "tok" || stored.User.ID != 1 {
		t.Errorf("wrong persisted credentials: %+v", stored)
	}
}

func TestStore_SetFailedDropsIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetAuthenticated(models.User{ID: 1, Username: "alice"}, "tok")
	s.SetFailed("bad token")

	sess := s.Snapshot()
	if sess.Status != StatusFailed || sess.User != nil || sess.Token != "" {
		t.Errorf("failure did not drop identity: %+v", sess)
	}
	if sess.Err != "bad token" {
		t.Errorf("error not recorded: %q", sess.Err)
	}
}

func TestStore_SeedFromStorage(t *testing.T) {
	s, creds := newTestStore(t)

	// Empty storage: nothing to seed.
	if _, err := s.SeedFromStorage(); !errors.Is(err, credstore.ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
	if s.Snapshot().Status != StatusIdle {
		t.Error("failed seed changed status")
	}

	if err := creds.Save(credstore.Credentials{
		User:  models.User{ID: 2, Username: "bob"},
		Token: "stored-tok",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.SeedFromStorage()
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if got.Token != "stored-tok" {
		t.Errorf("wrong credentials: %+v", got)
	}

	// Seeded but not yet verified: loading, not authenticated.
	sess := s.Snapshot()
	if sess.Status != StatusLoading {
		t.Errorf("expected loading until verification, got %v", sess.Status)
	}
	if s.Token() != "stored-tok" {
		t.Errorf("token not available for verification call: %q", s.Token())
	}
}

func TestStore_LogoutClearsEverything(t *testing.T) {
	s, creds := newTestStore(t)
	s.SetAuthenticated(models.User{ID: 1, Username: "alice"}, "tok")

	s.Logout()

	sess := s.Snapshot()
	if sess.Status != StatusIdle || sess.User != nil || sess.Token != "" || sess.Err != "" {
		t.Errorf("logout left state behind: %+v", sess)
	}
	if _, err := creds.Load(); !errors.Is(err, credstore.ErrNoCredentials) {
		t.Errorf("persisted credentials survived logout: %v", err)
	}
}

func TestStore_SubscribersNotified(t *testing.T) {
	s, _ := newTestStore(t)

	var statuses []Status
	unsub := s.Subscribe(func(sess Session) {
		statuses = append(statuses, sess.Status)
	})
	defer unsub()

	s.BeginAuth()
	s.SetAuthenticated(models.User{ID: 1, Username: "a"}, "t")
	s.Logout()

	want := []Status{StatusLoading, StatusAuthenticated, StatusIdle}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(statuses))
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("notification %d: expected %v, got %v", i, want[i], statuses[i])
		}
	}
}
