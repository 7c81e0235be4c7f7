package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubescript/api-gateway/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func strp(s string) *string { return &s }

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = content
	}
	return files
}

func TestReconstructSingleItemPlainText(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{ID: "h1", DownloadType: models.DownloadSingle}
	items := []models.TranscriptItem{{
		VideoID:        "vid1",
		VideoTitle:     strp("A Video"),
		TranscriptText: strp("hello world"),
	}}

	artifact, err := r.Reconstruct(entry, items)
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(artifact.Data))
	assert.Equal(t, "A Video.txt", artifact.Filename)
	assert.Contains(t, artifact.ContentType, "text/plain")
}

func TestReconstructMultiItemArchiveCompleteness(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{ID: "h1", DownloadType: models.DownloadChannel, VideoTitle: strp("My Channel")}
	payloads := []string{
		`{"video_id":"v1","transcript_text":"one"}`,
		`{"video_id":"v2","transcript_text":"two"}`,
		`{"video_id":"v3","transcript_text":"three"}`,
	}
	items := make([]models.TranscriptItem, len(payloads))
	for i, p := range payloads {
		items[i] = models.TranscriptItem{
			VideoID:        fmt.Sprintf("v%d", i+1),
			VideoTitle:     strp(fmt.Sprintf("video %d", i+1)),
			TranscriptJSON: json.RawMessage(p),
		}
	}

	artifact, err := r.Reconstruct(entry, items)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", artifact.ContentType)

	files := readZip(t, artifact.Data)
	require.Len(t, files, len(payloads))
	for i, p := range payloads {
		name := fmt.Sprintf("video %d.json", i+1)
		require.Contains(t, files, name)
		assert.JSONEq(t, p, string(files[name]))
	}
}

func TestReconstructArchiveForSingleItemOfArchiveType(t *testing.T) {
	r := NewReconstructor(testLogger())

	// A channel extraction that ended up with one stored item still
	// reproduces an archive, not a bare text file.
	entry := models.HistoryEntry{ID: "h1", DownloadType: models.DownloadCSV}
	items := []models.TranscriptItem{{
		VideoID:        "v1",
		TranscriptJSON: json.RawMessage(`{"transcript_text":"only one"}`),
	}}

	artifact, err := r.Reconstruct(entry, items)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", artifact.ContentType)

	files := readZip(t, artifact.Data)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "v1.json")
}

func TestReconstructItemWithoutJSONGetsRebuiltObject(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{ID: "h1", DownloadType: models.DownloadBatch}
	items := []models.TranscriptItem{
		{VideoID: "v1", VideoTitle: strp("First"), ChannelName: strp("Chan"), TranscriptText: strp("text one")},
		{VideoID: "v2", TranscriptJSON: json.RawMessage(`{"transcript_text":"text two"}`)},
	}

	artifact, err := r.Reconstruct(entry, items)
	require.NoError(t, err)

	files := readZip(t, artifact.Data)
	require.Contains(t, files, "First.json")

	var rebuilt struct {
		VideoID        string  `json:"video_id"`
		VideoTitle     *string `json:"video_title"`
		ChannelName    *string `json:"channel_name"`
		TranscriptText *string `json:"transcript_text"`
	}
	require.NoError(t, json.Unmarshal(files["First.json"], &rebuilt))
	assert.Equal(t, "v1", rebuilt.VideoID)
	assert.Equal(t, "First", *rebuilt.VideoTitle)
	assert.Equal(t, "Chan", *rebuilt.ChannelName)
	assert.Equal(t, "text one", *rebuilt.TranscriptText)
}

func TestReconstructSkipsMalformedItem(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{ID: "h1", DownloadType: models.DownloadChannel}
	items := []models.TranscriptItem{
		{VideoID: "good", TranscriptJSON: json.RawMessage(`{"transcript_text":"fine"}`)},
		{VideoID: "bad", TranscriptJSON: json.RawMessage(`{not valid json`)},
	}

	artifact, err := r.Reconstruct(entry, items)
	require.NoError(t, err)

	files := readZip(t, artifact.Data)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "good.json")
}

func TestFilenameSanitization(t *testing.T) {
	name := SanitizeFilename(`My/Video:Title?`, "", 0)
	assert.Equal(t, "My_Video_Title_", name)

	long := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'a')
	}
	assert.Len(t, SanitizeFilename(string(long), "", 0), maxFilenameLen)

	assert.Equal(t, "fallback-id", SanitizeFilename("", "fallback-id", 0))
	assert.Equal(t, "transcript_3", SanitizeFilename("", "", 2))
}

func TestReconstructLegacyTextFallback(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{
		ID:             "h1",
		VideoID:        "vid",
		DownloadType:   models.DownloadSingle,
		TranscriptText: strp("legacy transcript"),
	}

	artifact, err := r.Reconstruct(entry, nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy transcript", string(artifact.Data))
	assert.Equal(t, "vid.txt", artifact.Filename)
}

func TestReconstructLegacyJSONFallback(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{
		ID:             "h1",
		VideoID:        "vid",
		DownloadType:   models.DownloadSingle,
		TranscriptJSON: json.RawMessage(`{"transcript_text":"from json"}`),
	}

	artifact, err := r.Reconstruct(entry, nil)
	require.NoError(t, err)
	assert.Contains(t, artifact.ContentType, "application/json")
	assert.JSONEq(t, `{"transcript_text":"from json"}`, string(artifact.Data))
}

func TestReconstructArchiveMarkerWithoutItems(t *testing.T) {
	r := NewReconstructor(testLogger())

	entry := models.HistoryEntry{
		ID:             "h1",
		DownloadType:   models.DownloadChannel,
		TranscriptText: strp("ZIP file download"),
		TranscriptJSON: json.RawMessage(`{"type":"zip","size":1024,"count":12}`),
	}

	_, err := r.Reconstruct(entry, nil)
	assert.ErrorIs(t, err, ErrNoArchivedItems)
}

func TestReconstructNothingStored(t *testing.T) {
	r := NewReconstructor(testLogger())

	_, err := r.Reconstruct(models.HistoryEntry{ID: "h1"}, nil)
	assert.ErrorIs(t, err, ErrNoArchivedItems)
}
