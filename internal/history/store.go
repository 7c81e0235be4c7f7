// Package history persists transcript download history and derives the
// usage stats that gate free-tier bulk features.
package history

import (
	"context"
	"errors"

	"tubescript/api-gateway/models"
)

var (
	// ErrUnauthenticated is returned when a write is attempted without a
	// caller identity. The download itself succeeded upstream, so callers
	// surface this as "could not be saved to history" rather than dropping
	// it silently.
	ErrUnauthenticated = errors.New("caller is not authenticated")

	// ErrOwnershipMismatch is returned when the caller identity does not
	// match the user the entry is being written for.
	ErrOwnershipMismatch = errors.New("entry user does not match caller")

	// ErrNotFound is returned when an entry does not exist or is not owned
	// by the requesting user. The two cases are deliberately
	// indistinguishable so nothing about other users' rows leaks.
	ErrNotFound = errors.New("history entry not found")

	// ErrQuotaExceeded is returned when a gated extraction type is written
	// by a free-tier user who already reached the download limit.
	ErrQuotaExceeded = errors.New("free download limit reached")
)

// FreeDownloadLimit is the number of lifetime video downloads included in
// the free tier. The gate is inclusive: a user at exactly the limit is
// already blocked from bulk, channel and CSV extraction.
const FreeDownloadLimit = 25

const (
	// DefaultListLimit bounds history listings when the caller does not ask
	// for a specific page size.
	DefaultListLimit = 50

	recentDownloadCount = 10
)

// Stats aggregates a user's download history. TotalDownloads counts
// individual videos (one channel extraction of 40 videos counts as 40),
// while DownloadsByType counts entries.
type Stats struct {
	TotalDownloads  int                   `json:"total_downloads"`
	DownloadsByType map[string]int        `json:"downloads_by_type"`
	RecentDownloads []models.HistoryEntry `json:"recent_downloads"`
}

// ReachedFreeLimit reports whether the stats put the user at or past the
// free-tier quota.
func ReachedFreeLimit(s *Stats) bool {
	return s.TotalDownloads >= FreeDownloadLimit
}

// ComputeStats reduces a user's history entries, ordered newest first, into
// Stats. Entries missing total_videos count as a single video.
func ComputeStats(entries []models.HistoryEntry) *Stats {
	s := &Stats{
		DownloadsByType: make(map[string]int),
		RecentDownloads: []models.HistoryEntry{},
	}
	for _, e := range entries {
		s.TotalDownloads += e.VideoCount()
		tag := string(e.DownloadType)
		if tag == "" {
			tag = "unknown"
		}
		s.DownloadsByType[tag]++
	}
	if len(entries) > recentDownloadCount {
		s.RecentDownloads = entries[:recentDownloadCount]
	} else {
		s.RecentDownloads = entries
	}
	return s
}

// Store is the persistence surface for transcript history. All operations
// take the acting user explicitly; ownership checks are a pure function of
// the arguments, never of ambient session state.
type Store interface {
	// SaveEntry appends one history entry after verifying the caller owns
	// it, enforcing the free-tier quota for gated extraction types. Returns
	// the persisted entry including its assigned id.
	SaveEntry(ctx context.Context, callerID string, entry models.HistoryEntry) (*models.HistoryEntry, error)

	// SaveItems bulk-inserts the per-video items of one entry. The write is
	// atomic-or-failed from the caller's perspective; on failure the entry
	// stays without items and readers degrade accordingly.
	SaveItems(ctx context.Context, historyID string, items []models.TranscriptItem) error

	ListEntries(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	GetEntry(ctx context.Context, userID, entryID string) (*models.HistoryEntry, error)
	GetItems(ctx context.Context, historyID string) ([]models.TranscriptItem, error)

	// DeleteEntry and ClearHistory are idempotent; deleting rows that are
	// already gone is a no-op, not an error.
	DeleteEntry(ctx context.Context, userID, entryID string) error
	ClearHistory(ctx context.Context, userID string) error

	// Stats runs the quota aggregation over all of the user's entries.
	Stats(ctx context.Context, userID string) (*Stats, error)

	// HasActiveSubscription reports whether the user holds an active paid
	// subscription, which lifts the free-tier gate.
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}
