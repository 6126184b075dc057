// Package cache keeps fetched datasets in a local key/value store.
//
// Entries never expire on their own. They stay valid until Invalidate or
// InvalidateAll removes them, or until a quota eviction clears the store.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Fixed dataset keys.
const (
	KeyUsers         = "codenexus_cache_users"
	KeyRegistrations = "codenexus_cache_registrations"
	KeyOverview      = "codenexus_cache_overview"
)

// Keys lists every key the dashboard writes, in display order.
var Keys = []string{KeyUsers, KeyRegistrations, KeyOverview}

// ErrQuotaExceeded is returned by a Backend when a write would exceed its
// storage capacity.
var ErrQuotaExceeded = errors.New("cache quota exceeded")

// Backend is the raw persistence layer underneath a Store.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
}

// envelope is the persisted form of every entry.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	StoredAt time.Time       `json:"storedAt"`
}

// Store is a best-effort dataset cache. Reads never fail and writes never
// return errors; both degrade to a miss and a log line.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for storedAt and Age.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get decodes the payload stored under key into v and reports whether it was
// found. A corrupt entry is deleted and reported as a miss.
func (s *Store) Get(key string, v any) bool {
	env, ok := s.load(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		s.heal(key, err)
		return false
	}
	return true
}

// Set stores v under key, replacing any previous entry. When the backend is
// full, every entry is evicted and the write is retried once. A write that
// still fails is dropped and false is returned.
func (s *Store) Set(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache write dropped", "key", key, "error", err)
		return false
	}
	raw, err := json.Marshal(envelope{Data: data, StoredAt: s.now().UTC()})
	if err != nil {
		s.logger.Warn("cache write dropped", "key", key, "error", err)
		return false
	}

	err = s.backend.Put(key, raw)
	if errors.Is(err, ErrQuotaExceeded) {
		s.logger.Warn("cache quota exceeded, evicting all entries", "key", key, "bytes", len(raw))
		if clearErr := s.InvalidateAll(); clearErr != nil {
			s.logger.Warn("cache eviction failed", "error", clearErr)
		}
		err = s.backend.Put(key, raw)
	}
	if err != nil {
		s.logger.Warn("cache write dropped", "key", key, "error", err)
		return false
	}

	s.logger.Debug("cache write", "key", key, "bytes", len(raw))
	return true
}

// Invalidate removes the entry for key.
func (s *Store) Invalidate(key string) error {
	if err := s.backend.Delete(key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	s.logger.Debug("cache invalidated", "key", key)
	return nil
}

// InvalidateAll removes every entry.
func (s *Store) InvalidateAll() error {
	if err := s.backend.Clear(); err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	s.logger.Debug("cache cleared")
	return nil
}

// Age returns how long ago key was written. It is informational only.
func (s *Store) Age(key string) (time.Duration, bool) {
	env, ok := s.load(key)
	if !ok {
		return 0, false
	}
	return s.now().Sub(env.StoredAt), true
}

func (s *Store) load(key string) (envelope, bool) {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return envelope{}, false
	}
	if !ok {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.heal(key, err)
		return envelope{}, false
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		s.heal(key, errors.New("missing data"))
		return envelope{}, false
	}
	return env, true
}

// heal drops an entry that could not be decoded.
func (s *Store) heal(key string, cause error) {
	s.logger.Debug("dropping corrupt cache entry", "key", key, "error", cause)
	if err := s.backend.Delete(key); err != nil {
		s.logger.Warn("delete corrupt cache entry", "key", key, "error", err)
	}
}
