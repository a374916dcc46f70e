// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poppy-bot/poppy/internal/store"
)

// Repository is a store.Store backed by a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Repository)(nil)

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewDB opens a pgx pool with tuned defaults. The bot is a light writer, so
// the pool stays small.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the bot's tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS scanned_urls (
  url TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  scan_id TEXT,
  raw_response JSONB,
  last_scanned_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS shortened_urls (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL,
  original_url TEXT NOT NULL,
  short_code TEXT NOT NULL,
  short_url TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS shortened_urls_user_idx ON shortened_urls (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS warnings (
  id BIGSERIAL PRIMARY KEY,
  guild_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  moderator_id TEXT NOT NULL,
  reason TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS warnings_member_idx ON warnings (guild_id, user_id);

CREATE TABLE IF NOT EXISTS custom_commands (
  guild_id TEXT NOT NULL,
  name TEXT NOT NULL,
  response TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  usage_count INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (guild_id, name)
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (r *Repository) Close() {
	r.pool.Close()
}

func (r *Repository) GetScannedURL(ctx context.Context, url string) (*store.ScannedURL, error) {
	const query = `
SELECT url, status, COALESCE(scan_id, ''), raw_response, last_scanned_at
FROM scanned_urls WHERE url = $1;`

	rec := &store.ScannedURL{}
	err := r.pool.QueryRow(ctx, query, url).Scan(&rec.URL, &rec.Status, &rec.ScanID, &rec.RawResponse, &rec.LastScannedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select scanned url: %w", err)
	}
	return rec, nil
}

func (r *Repository) InsertScannedURL(ctx context.Context, rec *store.ScannedURL) error {
	const query = `
INSERT INTO scanned_urls (url, status, scan_id, raw_response, last_scanned_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5);`

	_, err := r.pool.Exec(ctx, query, rec.URL, rec.Status, rec.ScanID, rec.RawResponse, rec.LastScannedAt.UTC())
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert scanned url: %w", err)
	}
	return nil
}

func (r *Repository) UpdateScannedURL(ctx context.Context, rec *store.ScannedURL) error {
	const query = `
UPDATE scanned_urls
SET status = $2, scan_id = NULLIF($3, ''), raw_response = $4, last_scanned_at = $5
WHERE url = $1;`

	tag, err := r.pool.Exec(ctx, query, rec.URL, rec.Status, rec.ScanID, rec.RawResponse, rec.LastScannedAt.UTC())
	if err != nil {
		return fmt.Errorf("update scanned url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) SaveShortenedURL(ctx context.Context, rec *store.ShortenedURL) error {
	const query = `
INSERT INTO shortened_urls (user_id, original_url, short_code, short_url, created_at)
VALUES ($1, $2, $3, $4, $5);`

	_, err := r.pool.Exec(ctx, query, rec.UserID, rec.OriginalURL, rec.ShortCode, rec.ShortURL, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert shortened url: %w", err)
	}
	return nil
}

func (r *Repository) ListShortenedURLs(ctx context.Context, userID string, limit int) ([]store.ShortenedURL, error) {
	const query = `
SELECT user_id, original_url, short_code, short_url, created_at
FROM shortened_urls WHERE user_id = $1
ORDER BY created_at DESC LIMIT $2;`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select shortened urls: %w", err)
	}
	defer rows.Close()

	var out []store.ShortenedURL
	for rows.Next() {
		var rec store.ShortenedURL
		if err := rows.Scan(&rec.UserID, &rec.OriginalURL, &rec.ShortCode, &rec.ShortURL, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan shortened url: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) AddWarning(ctx context.Context, w *store.Warning) error {
	const query = `
INSERT INTO warnings (guild_id, user_id, moderator_id, reason, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id;`

	err := r.pool.QueryRow(ctx, query, w.GuildID, w.UserID, w.ModeratorID, w.Reason, w.CreatedAt.UTC()).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	return nil
}

func (r *Repository) ListWarnings(ctx context.Context, guildID, userID string) ([]store.Warning, error) {
	const query = `
SELECT id, guild_id, user_id, moderator_id, reason, created_at
FROM warnings WHERE guild_id = $1 AND user_id = $2
ORDER BY created_at ASC;`

	rows, err := r.pool.Query(ctx, query, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("select warnings: %w", err)
	}
	defer rows.Close()

	var out []store.Warning
	for rows.Next() {
		var w store.Warning
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &w.Reason, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) ClearWarnings(ctx context.Context, guildID, userID string) (int, error) {
	const query = `DELETE FROM warnings WHERE guild_id = $1 AND user_id = $2;`

	tag, err := r.pool.Exec(ctx, query, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete warnings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) CreateCustomCommand(ctx context.Context, c *store.CustomCommand) error {
	const query = `
INSERT INTO custom_commands (guild_id, name, response, creator_id, usage_count, created_at)
VALUES ($1, $2, $3, $4, 0, $5);`

	_, err := r.pool.Exec(ctx, query, c.GuildID, c.Name, c.Response, c.CreatorID, c.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert custom command: %w", err)
	}
	return nil
}

func (r *Repository) GetCustomCommand(ctx context.Context, guildID, name string) (*store.CustomCommand, error) {
	const query = `
SELECT guild_id, name, response, creator_id, usage_count, created_at
FROM custom_commands WHERE guild_id = $1 AND name = $2;`

	c := &store.CustomCommand{}
	err := r.pool.QueryRow(ctx, query, guildID, name).Scan(&c.GuildID, &c.Name, &c.Response, &c.CreatorID, &c.UsageCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select custom command: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCustomCommands(ctx context.Context, guildID string) ([]store.CustomCommand, error) {
	const query = `
SELECT guild_id, name, response, creator_id, usage_count, created_at
FROM custom_commands WHERE guild_id = $1 ORDER BY name ASC;`

	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("select custom commands: %w", err)
	}
	defer rows.Close()

	var out []store.CustomCommand
	for rows.Next() {
		var c store.CustomCommand
		if err := rows.Scan(&c.GuildID, &c.Name, &c.Response, &c.CreatorID, &c.UsageCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan custom command: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteCustomCommand(ctx context.Context, guildID, name string) error {
	const query = `DELETE FROM custom_commands WHERE guild_id = $1 AND name = $2;`

	tag, err := r.pool.Exec(ctx, query, guildID, name)
	if err != nil {
		return fmt.Errorf("delete custom command: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) IncrementCommandUsage(ctx context.Context, guildID, name string) error {
	const query = `
UPDATE custom_commands SET usage_count = usage_count + 1
WHERE guild_id = $1 AND name = $2;`

	_, err := r.pool.Exec(ctx, query, guildID, name)
	if err != nil {
		return fmt.Errorf("increment command usage: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
