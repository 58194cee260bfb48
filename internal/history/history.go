// Package history keeps the client-local list of recent conversion results.
// The list lives under a single key as one JSON blob, newest first, capped
// at MaxEntries.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maauso/vid2gif/internal/storage"
)

// MaxEntries is the number of conversions retained.
const MaxEntries = 5

// DefaultKey is the storage key the list is persisted under.
const DefaultKey = "gifHistory"

// Entry is one completed conversion. Entries are values and are never
// modified after they are recorded.
type Entry struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Store is the only writer of the persisted history list.
type Store struct {
	mu     sync.Mutex
	kv     storage.KV
	key    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used to report recovered read errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a history store persisting through kv.
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored entries, newest first. A missing, unreadable or
// corrupt payload yields an empty list; the failure is logged, not returned.
func (s *Store) Load(ctx context.Context) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Record prepends entry, keeps the MaxEntries newest and persists the list
// in one write.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load(ctx)
	next := make([]Entry, 0, MaxEntries)
	next = append(next, entry)
	next = append(next, current...)
	if len(next) > MaxEntries {
		next = next[:MaxEntries]
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}

	s.logger.Debug("history entry recorded",
		slog.String("url", entry.URL),
		slog.Int("entries", len(next)),
	)
	return nil
}

// Clear deletes the persisted list.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	s.logger.Info("history cleared")
	return nil
}

func (s *Store) load(ctx context.Context) []Entry {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read history",
				slog.String("key", s.key),
				slog.String("error", err.Error()),
			)
		}
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("discarding corrupt history payload",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return []Entry{}
	}

	if entries == nil {
		return []Entry{}
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}
