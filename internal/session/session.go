// Package session owns the authenticated identity and its lifecycle. It is
// the single writer of the bearer token; the API client and the realtime
// dialer only ever read it through the TokenSource interface.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"posto/internal/credstore"
	"posto/internal/models"
)

type Status string

const (
	StatusIdle          Status = "idle"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusFailed        Status = "failed"
)

// Session is the auth state snapshot. User is non-nil exactly when Status
// is authenticated or a restore is mid-verification.
type Session struct {
	User   *models.User
	Token  string
	Status Status
	Err    string
}

// CredentialStore is the persisted-credential capability: opaque get, set
// and remove.
type CredentialStore interface {
	Save(credstore.Credentials) error
	Load() (credstore.Credentials, error)
	Clear() error
}

type Store struct {
	creds CredentialStore
	log   *slog.Logger

	mu      sync.RWMutex
	session Session

	subMu   sync.Mutex
	subs    map[int]func(Session)
	nextSub int
}

func New(creds CredentialStore, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		creds:   creds,
		log:     log,
		session: Session{Status: StatusIdle},
		subs:    make(map[int]func(Session)),
	}
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// User returns the authenticated user, if any.
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.User == nil {
		return models.User{}, false
	}
	return *s.session.User, true
}

func (s *Store) Subscribe(fn func(Session)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// BeginAuth marks a login, registration or restore as in flight.
func (s *Store) BeginAuth() {
	s.update(func(sess *Session) {
		sess.Status = StatusLoading
		sess.Err = ""
	})
}

// SetAuthenticated installs a verified identity and persists it.
func (s *Store) SetAuthenticated(user models.User, token string) {
	s.update(func(sess *Session) {
		u := user
		sess.User = &u
		sess.Token = token
		sess.Status = StatusAuthenticated
		sess.Err = ""
	})

	if err := s.creds.Save(credstore.Credentials{User: user, Token: token}); err != nil {
		// Persistence failure degrades restart convenience, not the live
		// session.
		s.log.Warn("failed to persist credentials", "error", err)
	}
}

// SetFailed records an authentication failure and drops any identity.
func (s *Store) SetFailed(errMsg string) {
	s.update(func(sess *Session) {
		sess.User = nil
		sess.Token = ""
		sess.Status = StatusFailed
		sess.Err = errMsg
	})
}

// SeedFromStorage loads persisted credentials into the session in the
// loading state. The token is not trusted yet: the caller must verify it
// against the backend and either confirm with SetAuthenticated or tear
// down with Logout.
func (s *Store) SeedFromStorage() (credstore.Credentials, error) {
	creds, err := s.creds.Load()
	if err != nil {
		if !errors.Is(err, credstore.ErrNoCredentials) {
			s.log.Warn("failed to load persisted credentials", "error", err)
		}
		return credstore.Credentials{}, err
	}

	s.update(func(sess *Session) {
		u := creds.User
		sess.User = &u
		sess.Token = creds.Token
		sess.Status = StatusLoading
		sess.Err = ""
	})
	return creds, nil
}

// Logout clears the session and the persisted credentials. It is safe to
// call in any state.
func (s *Store) Logout() {
	s.update(func(sess *Session) {
		*sess = Session{Status: StatusIdle}
	})
	if err := s.creds.Clear(); err != nil {
		s.log.Warn("failed to clear persisted credentials", "error", err)
	}
}

func (s *Store) update(fn func(*Session)) {
	s.mu.Lock()
	fn(&s.session)
	snapshot := s.session
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *Store) notify(snapshot Session) {
	s.subMu.Lock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
