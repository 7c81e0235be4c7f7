package models

import (
	"encoding/json"
	"time"
)

// TranscriptItem represents one row of the transcript_items table: a single
// per-video transcript belonging to a HistoryEntry. Batch, channel and CSV
// entries have many items; legacy single-text entries have none. Both
// TranscriptText and TranscriptJSON are optional and consumers must fall
// back gracefully when either is missing.
type TranscriptItem struct {
	ID             string          `json:"id,omitempty"`
	HistoryID      string          `json:"history_id"`
	VideoID        string          `json:"video_id"`
	VideoTitle     *string         `json:"video_title,omitempty"`
	ChannelName    *string         `json:"channel_name,omitempty"`
	TranscriptText *string         `json:"transcript_text,omitempty"`
	TranscriptJSON json.RawMessage `json:"transcript_json,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

// Text resolves the best available transcript text for the item: the
// normalized text inside transcript_json first, then the denormalized
// transcript_text column, then a pretty-printed dump of the raw JSON.
func (i TranscriptItem) Text() string {
	if len(i.TranscriptJSON) > 0 {
		if p := ResolvePayload(i.TranscriptJSON); p.Kind != PayloadRaw && p.Text != "" {
			return p.Text
		}
	}
	if i.TranscriptText != nil && *i.TranscriptText != "" {
		return *i.TranscriptText
	}
	if len(i.TranscriptJSON) > 0 {
		if pretty, err := PrettyJSON(i.TranscriptJSON); err == nil {
			return string(pretty)
		}
		return string(i.TranscriptJSON)
	}
	return ""
}
