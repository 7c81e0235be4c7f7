package extract

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"tubescript/api-gateway/models"
)

// itemMeta is the per-video metadata the extraction service writes into
// each archive file, under slightly varying key names.
type itemMeta struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	VideoTitle  string `json:"video_title"`
	ChannelName string `json:"channel_name"`
}

// UnpackArchive reads a zip extraction result and converts each JSON file
// into a TranscriptItem candidate, normalizing the transcript payload shape
// once at ingestion. Files that fail to parse are skipped with a log line;
// one bad file does not fail the batch.
func UnpackArchive(data []byte, log *logrus.Logger) ([]models.TranscriptItem, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening extraction archive: %w", err)
	}

	items := make([]models.TranscriptItem, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		content, err := readZipFile(f)
		if err != nil {
			log.WithField("file", f.Name).WithError(err).Warn("Skipping unreadable archive file")
			continue
		}

		var meta itemMeta
		if err := json.Unmarshal(content, &meta); err != nil {
			log.WithField("file", f.Name).WithError(err).Warn("Skipping non-JSON archive file")
			continue
		}

		item := models.TranscriptItem{
			VideoID:        meta.VideoID,
			TranscriptJSON: json.RawMessage(content),
		}
		if item.VideoID == "" {
			item.VideoID = f.Name
		}

		title := meta.Title
		if title == "" {
			title = meta.VideoTitle
		}
		if title == "" {
			title = strings.TrimSuffix(f.Name, ".json")
		}
		item.VideoTitle = &title

		if meta.ChannelName != "" {
			channel := meta.ChannelName
			item.ChannelName = &channel
		}

		if p := models.ResolvePayload(content); p.Kind != models.PayloadRaw && p.Text != "" {
			text := p.Text
			item.TranscriptText = &text
		}

		items = append(items, item)
	}
	return items, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
