package models

import (
	"encoding/json"
	"time"
)

// DownloadType tags how a history entry's videos were sourced.
type DownloadType string

const (
	DownloadSingle   DownloadType = "single"
	DownloadBatch    DownloadType = "batch"
	DownloadChannel  DownloadType = "channel"
	DownloadCSV      DownloadType = "csv"
	DownloadPlaylist DownloadType = "playlist"
)

// Gated reports whether this extraction type counts against the free-tier
// bulk feature gate.
func (d DownloadType) Gated() bool {
	switch d {
	case DownloadBatch, DownloadChannel, DownloadCSV:
		return true
	}
	return false
}

// Archived reports whether entries of this type are delivered as a
// multi-file archive rather than a single transcript.
func (d DownloadType) Archived() bool {
	switch d {
	case DownloadBatch, DownloadChannel, DownloadCSV:
		return true
	}
	return false
}

// HistoryEntry represents one row of the transcript_history table: a single
// completed extraction operation. VideoID is free-form and may hold a video
// URL, a channel URL, or a CSV filename depending on DownloadType.
type HistoryEntry struct {
	ID             string          `json:"id,omitempty"`
	UserID         string          `json:"user_id"`
	VideoID        string          `json:"video_id"`
	VideoTitle     *string         `json:"video_title,omitempty"`
	ChannelName    *string         `json:"channel_name,omitempty"`
	TranscriptText *string         `json:"transcript_text,omitempty"`
	TranscriptJSON json.RawMessage `json:"transcript_json,omitempty"`
	DownloadType   DownloadType    `json:"download_type"`
	TotalVideos    *int            `json:"total_videos,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

// VideoCount returns the number of videos this entry contributed to the
// user's quota. Entries written before total_videos existed count as 1.
func (e HistoryEntry) VideoCount() int {
	if e.TotalVideos == nil || *e.TotalVideos < 1 {
		return 1
	}
	return *e.TotalVideos
}

// ArchiveMetadata is the transcript_json shape stored for archive-type
// entries, e.g. {"type":"zip","size":12345,"count":40}.
type ArchiveMetadata struct {
	Type  string `json:"type"`
	Size  int64  `json:"size"`
	Count int    `json:"count"`
}

// IsArchiveMarker reports whether raw is an ArchiveMetadata payload, meaning
// the entry's content lives in transcript_items rather than in the entry
// itself.
func IsArchiveMarker(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var meta ArchiveMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return false
	}
	return meta.Type == "zip"
}
