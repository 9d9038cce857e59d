// Package profiles persists named connection profiles in BadgerDB.
//
// Key namespace:
//
//	p:<id>     Profile (JSON)
//	n:<name>   id of the profile with that name
//	last       id of the most recently used profile
//
// Names are unique. Saving a profile under an existing name replaces it and
// keeps its ID.
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/netiface/nfsbridge/internal/logger"
)

var (
	// ErrNotFound is returned when no profile matches the requested ID or name.
	ErrNotFound = errors.New("profile not found")

	// ErrInvalid is returned by Save for profiles missing a name or server.
	ErrInvalid = errors.New("invalid profile")
)

const (
	prefixProfile = "p:"
	prefixName    = "n:"
	keyLastUsed   = "last"
)

func keyProfile(id string) []byte { return []byte(prefixProfile + id) }
func keyName(name string) []byte { return []byte(prefixName + name) }

// Profile is a saved set of Connect arguments.
type Profile struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Server    string    `json:"server" yaml:"server"`
	Export    string    `json:"export" yaml:"export"`
	UID       int32     `json:"uid" yaml:"uid"`
	GID       int32     `json:"gid" yaml:"gid"`
	Backend   string    `json:"backend,omitempty" yaml:"backend,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store is a BadgerDB-backed profile store, safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	db *badger.DB
}

// Open opens (or creates) the profile database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)
	return open(opts, dir)
}

// OpenInMemory opens a store that is discarded on Close.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)
	return open(opts, "(memory)")
}

func open(opts badger.Options, where string) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store at %s: %w", where, err)
	}
	logger.Debug("Profile store opened at %s", where)
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save inserts p, or replaces the profile with the same name. The stored
// profile, with ID and UpdatedAt filled in, is returned.
func (s *Store) Save(ctx context.Context, p Profile) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Server == "" {
		return Profile{}, fmt.Errorf("%w: name and server are required", ErrInvalid)
	}
	if p.Export == "" {
		p.Export = "/"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := lookupID(txn, keyName(p.Name))
		switch {
		case err == nil:
			p.ID = existing
		case errors.Is(err, ErrNotFound):
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
		default:
			return err
		}

		// Renaming an existing ID frees its old name.
		if old, err := getProfile(txn, p.ID); err == nil && old.Name != p.Name {
			if err := txn.Delete(keyName(old.Name)); err != nil {
				return err
			}
		}

		p.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		if err := txn.Set(keyProfile(p.ID), data); err != nil {
			return err
		}
		return txn.Set(keyName(p.Name), []byte(p.ID))
	})
	if err != nil {
		return Profile{}, err
	}

	logger.Debug("Saved profile %q (%s)", p.Name, p.ID)
	return p, nil
}

// Get returns the profile with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getProfile(txn, id)
		return err
	})
	return p, err
}

// GetByName returns the profile called name.
func (s *Store) GetByName(ctx context.Context, name string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := lookupID(txn, keyName(strings.TrimSpace(name)))
		if err != nil {
			return err
		}
		p, err = getProfile(txn, id)
		return err
	})
	return p, err
}

// List returns all profiles sorted by name.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Profile
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixProfile)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p Profile
				if err := json.Unmarshal(val, &p); err != nil {
					// Skip corrupted entries
					logger.Warn("Skipping unreadable profile %s: %v", it.Item().Key(), err)
					return nil
				}
				out = append(out, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the profile called name. Deleting the last-used profile
// clears the last-used marker.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		id, err := lookupID(txn, keyName(strings.TrimSpace(name)))
		if err != nil {
			return err
		}
		if err := txn.Delete(keyProfile(id)); err != nil {
			return err
		}
		if err := txn.Delete(keyName(strings.TrimSpace(name))); err != nil {
			return err
		}
		if last, err := lookupID(txn, []byte(keyLastUsed)); err == nil && last == id {
			return txn.Delete([]byte(keyLastUsed))
		}
		return nil
	})
}

// SetLastUsed marks the profile with the given ID as most recently used.
func (s *Store) SetLastUsed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getProfile(txn, id); err != nil {
			return err
		}
		return txn.Set([]byte(keyLastUsed), []byte(id))
	})
}

// LastUsed returns the most recently used profile, or ErrNotFound.
func (s *Store) LastUsed(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := lookupID(txn, []byte(keyLastUsed))
		if err != nil {
			return err
		}
		p, err = getProfile(txn, id)
		return err
	})
	return p, err
}

func lookupID(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func getProfile(txn *badger.Txn, id string) (Profile, error) {
	item, err := txn.Get(keyProfile(id))
	if err == badger.ErrKeyNotFound {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	return p, nil
}
