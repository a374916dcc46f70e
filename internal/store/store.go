// Package store defines the records Poppy persists and the repository
// interfaces its features depend on. Implementations live in the postgres
// and memory subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates that no record exists for the given key.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates that an insert hit an existing record.
var ErrAlreadyExists = errors.New("record already exists")

// ScannedURL is the persisted outcome of a URL safety scan. There is at most
// one record per distinct URL string; re-scans overwrite it in place.
type ScannedURL struct {
	// URL is the exact string that was scanned. No normalization is applied.
	URL string
	// Status is the last computed verdict: safe, malicious, unknown or error.
	Status string
	// ScanID is the provider handle of the scan that produced Status. Empty
	// when no provider accepted the submission.
	ScanID string
	// RawResponse captures which providers were consulted and their raw
	// reports. Audit material only; nothing reads it back for control flow.
	RawResponse json.RawMessage
	// LastScannedAt is when the most recent scan completed.
	LastScannedAt time.Time
}

// ScanStore persists URL scan results keyed by exact URL string.
type ScanStore interface {
	// GetScannedURL returns the record for the URL, or ErrNotFound.
	GetScannedURL(ctx context.Context, url string) (*ScannedURL, error)
	// InsertScannedURL creates a record. Returns ErrAlreadyExists when a
	// record for the URL is present; callers must Update instead.
	InsertScannedURL(ctx context.Context, rec *ScannedURL) error
	// UpdateScannedURL overwrites status, scan ID, raw response and scan time
	// of an existing record. Returns ErrNotFound when there is none.
	UpdateScannedURL(ctx context.Context, rec *ScannedURL) error
}

// ShortenedURL is one entry of a user's URL shortening history.
type ShortenedURL struct {
	UserID      string
	OriginalURL string
	ShortCode   string
	ShortURL    string
	CreatedAt   time.Time
}

// ShortURLStore persists per-user shortening history.
type ShortURLStore interface {
	SaveShortenedURL(ctx context.Context, rec *ShortenedURL) error
	// ListShortenedURLs returns the user's most recent entries, newest first.
	ListShortenedURLs(ctx context.Context, userID string, limit int) ([]ShortenedURL, error)
}

// Warning is one moderation warning issued against a guild member.
type Warning struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	CreatedAt   time.Time
}

// WarningStore persists the moderation warning ledger.
type WarningStore interface {
	AddWarning(ctx context.Context, w *Warning) error
	ListWarnings(ctx context.Context, guildID, userID string) ([]Warning, error)
	// ClearWarnings removes all warnings for the member and returns how many
	// were deleted.
	ClearWarnings(ctx context.Context, guildID, userID string) (int, error)
}

// CustomCommand is a guild-scoped stored response.
type CustomCommand struct {
	GuildID    string
	Name       string
	Response   string
	CreatorID  string
	UsageCount int
	CreatedAt  time.Time
}

// CustomCommandStore persists guild custom commands keyed by (guild, name).
type CustomCommandStore interface {
	CreateCustomCommand(ctx context.Context, c *CustomCommand) error
	// GetCustomCommand returns the command, or ErrNotFound.
	GetCustomCommand(ctx context.Context, guildID, name string) (*CustomCommand, error)
	ListCustomCommands(ctx context.Context, guildID string) ([]CustomCommand, error)
	DeleteCustomCommand(ctx context.Context, guildID, name string) error
	IncrementCommandUsage(ctx context.Context, guildID, name string) error
}

// Store bundles every repository the bot needs so implementations can be
// swapped as one unit.
type Store interface {
	ScanStore
	ShortURLStore
	WarningStore
	CustomCommandStore
}
