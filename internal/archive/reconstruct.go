// Package archive rebuilds downloadable transcript artifacts from stored
// history and item records, without re-contacting the extraction service.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"tubescript/api-gateway/models"
)

// ErrNoArchivedItems is returned when an archive-type entry has no stored
// per-video items to rebuild from. The user has to re-run the extraction.
var ErrNoArchivedItems = errors.New("no individual transcripts available, please re-run extraction")

// zipCompressionLevel mirrors the DEFLATE level the original downloads were
// packaged with, so reconstructed archives match in content and size class.
const zipCompressionLevel = 6

// Artifact is a reconstructed downloadable file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Reconstructor rebuilds artifacts from history records.
type Reconstructor struct {
	log *logrus.Logger
	now func() time.Time
}

func NewReconstructor(log *logrus.Logger) *Reconstructor {
	return &Reconstructor{log: log, now: time.Now}
}

// Reconstruct rebuilds the downloadable artifact for an entry from its
// stored items. A lone item with usable text becomes a plain-text file;
// multiple items, or any archive-type entry, become a zip with one JSON
// file per item. Entries with no items fall back to their own stored
// transcript fields.
func (r *Reconstructor) Reconstruct(entry models.HistoryEntry, items []models.TranscriptItem) (*Artifact, error) {
	if len(items) == 0 {
		return r.reconstructLegacy(entry)
	}

	if len(items) == 1 && !entry.DownloadType.Archived() {
		if text := items[0].Text(); text != "" {
			return &Artifact{
				Filename:    textFilename(items[0], entry),
				ContentType: "text/plain; charset=utf-8",
				Data:        []byte(text),
			}, nil
		}
	}

	return r.buildZip(entry, items)
}

func (r *Reconstructor) buildZip(entry models.HistoryEntry, items []models.TranscriptItem) (*Artifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, zipCompressionLevel)
	})

	written := 0
	for i, item := range items {
		content, err := itemContent(item)
		if err != nil {
			// One corrupt item must not sink the whole archive.
			r.log.WithFields(logrus.Fields{
				"history_id": entry.ID,
				"video_id":   item.VideoID,
			}).WithError(err).Warn("Skipping malformed transcript item")
			continue
		}

		name := SanitizeFilename(stringOr(item.VideoTitle), item.VideoID, i) + ".json"
		f, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", name, err)
		}
		if _, err := f.Write(content); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", name, err)
		}
		written++
	}

	if written == 0 {
		return nil, ErrNoArchivedItems
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	base := stringOr(entry.VideoTitle)
	if base == "" {
		base = entry.VideoID
	}
	if base == "" {
		base = "transcripts"
	}
	return &Artifact{
		Filename:    fmt.Sprintf("%s-%d.zip", SanitizeFilename(base, "", 0), r.now().UnixMilli()),
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, nil
}

// itemContent returns the JSON file body for one item: the stored payload
// verbatim when present (reproducing the original per-video export shape),
// otherwise a reconstructed object from the denormalized columns.
func itemContent(item models.TranscriptItem) ([]byte, error) {
	if len(item.TranscriptJSON) > 0 {
		pretty, err := models.PrettyJSON(item.TranscriptJSON)
		if err != nil {
			return nil, fmt.Errorf("stored transcript payload is not valid JSON: %w", err)
		}
		return pretty, nil
	}

	fallback := map[string]interface{}{
		"video_id":        item.VideoID,
		"video_title":     item.VideoTitle,
		"channel_name":    item.ChannelName,
		"transcript_text": item.TranscriptText,
	}
	return json.MarshalIndent(fallback, "", "  ")
}

// reconstructLegacy serves entries written before per-video items existed,
// or whose item write failed, from the entry's own columns.
func (r *Reconstructor) reconstructLegacy(entry models.HistoryEntry) (*Artifact, error) {
	if len(entry.TranscriptJSON) > 0 {
		if models.IsArchiveMarker(entry.TranscriptJSON) {
			// The archive content was never stored item-by-item; there is
			// nothing to rebuild it from.
			return nil, ErrNoArchivedItems
		}
		pretty, err := models.PrettyJSON(entry.TranscriptJSON)
		if err == nil {
			base := stringOr(entry.VideoTitle)
			if base == "" {
				base = entry.VideoID
			}
			if base == "" {
				base = "transcript"
			}
			return &Artifact{
				Filename:    fmt.Sprintf("%s-%d.json", SanitizeFilename(base, "", 0), r.now().UnixMilli()),
				ContentType: "application/json; charset=utf-8",
				Data:        pretty,
			}, nil
		}
		r.log.WithField("history_id", entry.ID).WithError(err).Warn("Legacy transcript payload is not valid JSON")
	}

	if entry.TranscriptText != nil && *entry.TranscriptText != "" {
		base := stringOr(entry.VideoTitle)
		if base == "" {
			base = entry.VideoID
		}
		if base == "" {
			base = "transcript"
		}
		return &Artifact{
			Filename:    SanitizeFilename(base, "", 0) + ".txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(*entry.TranscriptText),
		}, nil
	}

	return nil, ErrNoArchivedItems
}

func textFilename(item models.TranscriptItem, entry models.HistoryEntry) string {
	base := stringOr(item.VideoTitle)
	if base == "" {
		base = item.VideoID
	}
	if base == "" {
		base = stringOr(entry.VideoTitle)
	}
	if base == "" {
		base = "transcript"
	}
	return SanitizeFilename(base, "", 0) + ".txt"
}

func stringOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
