// Package memory implements store.Store in process memory. It backs local
// development and tests when no DATABASE_URL is configured; nothing survives
// a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/poppy-bot/poppy/internal/store"
)

// Store is an in-memory store.Store. Scan records live in a go-cache instance
// so dev deployments shed stale verdicts on their own; the engine re-scans
// evicted URLs the same way it handles a cache miss.
type Store struct {
	scans *cache.Cache

	mu        sync.Mutex
	shortened map[string][]store.ShortenedURL
	warnings  map[string][]store.Warning
	commands  map[string]store.CustomCommand
	warningID int64
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		scans:     cache.New(cache.NoExpiration, 0),
		shortened: map[string][]store.ShortenedURL{},
		warnings:  map[string][]store.Warning{},
		commands:  map[string]store.CustomCommand{},
	}
}

func (s *Store) GetScannedURL(_ context.Context, url string) (*store.ScannedURL, error) {
	v, ok := s.scans.Get(url)
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := v.(store.ScannedURL)
	return &rec, nil
}

func (s *Store) InsertScannedURL(_ context.Context, rec *store.ScannedURL) error {
	if err := s.scans.Add(rec.URL, *rec, cache.NoExpiration); err != nil {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *Store) UpdateScannedURL(_ context.Context, rec *store.ScannedURL) error {
	if _, ok := s.scans.Get(rec.URL); !ok {
		return store.ErrNotFound
	}
	s.scans.Set(rec.URL, *rec, cache.NoExpiration)
	return nil
}

func (s *Store) SaveShortenedURL(_ context.Context, rec *store.ShortenedURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortened[rec.UserID] = append(s.shortened[rec.UserID], *rec)
	return nil
}

func (s *Store) ListShortenedURLs(_ context.Context, userID string, limit int) ([]store.ShortenedURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]store.ShortenedURL(nil), s.shortened[userID]...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func memberKey(guildID, userID string) string {
	return guildID + "/" + userID
}

func (s *Store) AddWarning(_ context.Context, w *store.Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warningID++
	w.ID = s.warningID
	key := memberKey(w.GuildID, w.UserID)
	s.warnings[key] = append(s.warnings[key], *w)
	return nil
}

func (s *Store) ListWarnings(_ context.Context, guildID, userID string) ([]store.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Warning(nil), s.warnings[memberKey(guildID, userID)]...), nil
}

func (s *Store) ClearWarnings(_ context.Context, guildID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(guildID, userID)
	n := len(s.warnings[key])
	delete(s.warnings, key)
	return n, nil
}

func (s *Store) CreateCustomCommand(_ context.Context, c *store.CustomCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(c.GuildID, c.Name)
	if _, ok := s.commands[key]; ok {
		return store.ErrAlreadyExists
	}
	s.commands[key] = *c
	return nil
}

func (s *Store) GetCustomCommand(_ context.Context, guildID, name string) (*store.CustomCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[memberKey(guildID, name)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomCommands(_ context.Context, guildID string) ([]store.CustomCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.CustomCommand
	for _, c := range s.commands {
		if c.GuildID == guildID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteCustomCommand(_ context.Context, guildID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(guildID, name)
	if _, ok := s.commands[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.commands, key)
	return nil
}

func (s *Store) IncrementCommandUsage(_ context.Context, guildID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(guildID, name)
	c, ok := s.commands[key]
	if !ok {
		return store.ErrNotFound
	}
	c.UsageCount++
	s.commands[key] = c
	return nil
}
