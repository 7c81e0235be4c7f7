package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"tubescript/api-gateway/models"
)

const (
	historyTable      = "transcript_history"
	itemsTable        = "transcript_items"
	subscriptionTable = "subscriptions"
)

// SupabaseStore implements Store on top of the Supabase record store. It
// runs with the service credential, so user scoping is applied explicitly
// on every query rather than left to row-level security.
type SupabaseStore struct {
	db  *supa.Client
	log *logrus.Logger
}

func NewSupabaseStore(db *supa.Client, log *logrus.Logger) *SupabaseStore {
	return &SupabaseStore{db: db, log: log}
}

func (s *SupabaseStore) SaveEntry(ctx context.Context, callerID string, entry models.HistoryEntry) (*models.HistoryEntry, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if entry.UserID != callerID {
		s.log.WithFields(logrus.Fields{
			"caller_id":  callerID,
			"entry_user": entry.UserID,
		}).Warn("Rejected history write for mismatched user")
		return nil, ErrOwnershipMismatch
	}

	if entry.DownloadType.Gated() {
		if err := s.enforceQuota(ctx, callerID); err != nil {
			return nil, err
		}
	}

	row := map[string]interface{}{
		"user_id":       entry.UserID,
		"video_id":      entry.VideoID,
		"download_type": string(entry.DownloadType),
		"total_videos":  entry.VideoCount(),
	}
	if entry.VideoTitle != nil {
		row["video_title"] = *entry.VideoTitle
	}
	if entry.ChannelName != nil {
		row["channel_name"] = *entry.ChannelName
	}
	if entry.TranscriptText != nil {
		row["transcript_text"] = *entry.TranscriptText
	}
	if len(entry.TranscriptJSON) > 0 {
		row["transcript_json"] = entry.TranscriptJSON
	}

	body, _, err := s.db.From(historyTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("inserting history entry: %w", err)
	}

	var saved []models.HistoryEntry
	if err := json.Unmarshal(body, &saved); err != nil {
		return nil, fmt.Errorf("decoding inserted history entry: %w", err)
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("history insert returned no rows")
	}

	s.log.WithFields(logrus.Fields{
		"history_id":    saved[0].ID,
		"download_type": saved[0].DownloadType,
		"total_videos":  saved[0].VideoCount(),
	}).Info("Saved transcript history entry")
	return &saved[0], nil
}

// enforceQuota blocks gated writes once the free limit is reached, unless
// an active subscription lifts it.
func (s *SupabaseStore) enforceQuota(ctx context.Context, userID string) error {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking download quota: %w", err)
	}
	if !ReachedFreeLimit(stats) {
		return nil
	}
	subscribed, err := s.HasActiveSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking subscription for quota: %w", err)
	}
	if !subscribed {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *SupabaseStore) SaveItems(ctx context.Context, historyID string, items []models.TranscriptItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		row := map[string]interface{}{
			"history_id": historyID,
			"video_id":   item.VideoID,
		}
		if item.VideoTitle != nil {
			row["video_title"] = *item.VideoTitle
		}
		if item.ChannelName != nil {
			row["channel_name"] = *item.ChannelName
		}
		if item.TranscriptText != nil {
			row["transcript_text"] = *item.TranscriptText
		}
		if len(item.TranscriptJSON) > 0 {
			row["transcript_json"] = item.TranscriptJSON
		}
		rows = append(rows, row)
	}

	_, _, err := s.db.From(itemsTable).
		Insert(rows, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting %d transcript items: %w", len(rows), err)
	}

	s.log.WithFields(logrus.Fields{
		"history_id": historyID,
		"items":      len(rows),
	}).Info("Saved transcript items")
	return nil
}

func (s *SupabaseStore) ListEntries(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	body, _, err := s.db.From(historyTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching history for user: %w", err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding history entries: %w", err)
	}
	return entries, nil
}

func (s *SupabaseStore) GetEntry(ctx context.Context, userID, entryID string) (*models.HistoryEntry, error) {
	body, _, err := s.db.From(historyTable).
		Select("*", "", false).
		Eq("id", entryID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching history entry: %w", err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding history entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

func (s *SupabaseStore) GetItems(ctx context.Context, historyID string) ([]models.TranscriptItem, error) {
	body, _, err := s.db.From(itemsTable).
		Select("*", "", false).
		Eq("history_id", historyID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching transcript items: %w", err)
	}

	var items []models.TranscriptItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding transcript items: %w", err)
	}
	return items, nil
}

func (s *SupabaseStore) DeleteEntry(ctx context.Context, userID, entryID string) error {
	_, _, err := s.db.From(historyTable).
		Delete("", "").
		Eq("id", entryID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ClearHistory(ctx context.Context, userID string) error {
	_, _, err := s.db.From(historyTable).
		Delete("", "").
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	s.log.WithField("user_id", userID).Info("Cleared transcript history")
	return nil
}

func (s *SupabaseStore) Stats(ctx context.Context, userID string) (*Stats, error) {
	body, _, err := s.db.From(historyTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching history stats: %w", err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding history stats: %w", err)
	}
	return ComputeStats(entries), nil
}

func (s *SupabaseStore) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	body, _, err := s.db.From(subscriptionTable).
		Select("id", "", false).
		Eq("user_id", userID).
		Eq("status", "active").
		Limit(1, "").
		Execute()
	if err != nil {
		return false, fmt.Errorf("checking subscription: %w", err)
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decoding subscription rows: %w", err)
	}
	return len(rows) > 0, nil
}
