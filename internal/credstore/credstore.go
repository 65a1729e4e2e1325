// Package credstore persists the authenticated identity between runs so the
// client can resume a session without prompting for credentials. The stored
// token is never trusted as-is: callers revalidate it against the backend
// before using it.
package credstore

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"posto/internal/models"
)

var (
	bucketCredentials = []byte("credentials")

	credentialsKey = []byte("current")

	ErrNoCredentials = errors.New("no stored credentials")
)

// Credentials is what survives a restart: the bearer token plus the minimal
// user fields needed to pre-populate the session.
type Credentials struct {
	User  models.User
	Token string
	// SavedAt records when the credentials were written, for diagnostics.
	SavedAt time.Time
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the credentials, replacing any previous record.
func (s *Store) Save(creds Credentials) error {
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		rec := &dbCredentials{
			UserID:   creds.User.ID,
			Username: creds.User.Username,
			Email:    creds.User.Email,
			Token:    creds.Token,
			SavedAt:  creds.SavedAt.Unix(),
		}
		data, err := rec.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(credentialsKey, data)
	})
}

// Load returns the stored credentials or ErrNoCredentials.
func (s *Store) Load() (Credentials, error) {
	var creds Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data := b.Get(credentialsKey)
		if data == nil {
			return ErrNoCredentials
		}
		var rec dbCredentials
		if err := rec.UnmarshalBinary(data); err != nil {
			return err
		}
		creds = Credentials{
			User: models.User{
				ID:       rec.UserID,
				Username: rec.Username,
				Email:    rec.Email,
			},
			Token:   rec.Token,
			SavedAt: time.Unix(rec.SavedAt, 0),
		}
		return nil
	})
	return creds, err
}

// Clear removes any stored credentials. Clearing an empty store is not an
// error, so logout is idempotent.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredentials).Delete(credentialsKey)
	})
}
