package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestVideoCountFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Total-Videos", "12")
	assert.Equal(t, 12, videoCount(h))

	h = http.Header{}
	h.Set("X-Video-Count", "7")
	assert.Equal(t, 7, videoCount(h))
}

func TestVideoCountFromContentDisposition(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Disposition", `attachment; filename="csv_sample_urls_4of9videos_2024.zip"`)
	assert.Equal(t, 9, videoCount(h))
}

func TestVideoCountDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, videoCount(http.Header{}))

	h := http.Header{}
	h.Set("X-Total-Videos", "not-a-number")
	assert.Equal(t, 1, videoCount(h))
}

func TestResultKindDetection(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/zip")
	assert.Equal(t, ResultArchive, resultKind(h))

	h.Set("Content-Type", "application/octet-stream")
	assert.Equal(t, ResultArchive, resultKind(h))

	h.Set("Content-Type", "application/json")
	assert.Equal(t, ResultJSON, resultKind(h))
}

func TestChannelParsesArchiveResponse(t *testing.T) {
	archive := buildTestZip(t, map[string]string{
		"one.json": `{"video_id":"v1","transcript_text":"hi"}`,
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe-channel", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("X-Total-Videos", "5")
		w.Header().Set("Content-Disposition", `attachment; filename="transcripts.zip"`)
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token", testLogger())
	res, err := c.Channel(context.Background(), "https://youtube.com/@somechannel")
	require.NoError(t, err)

	assert.Equal(t, ResultArchive, res.Kind)
	assert.Equal(t, 5, res.VideoCount)
	assert.Equal(t, "transcripts.zip", res.Filename)
	assert.Equal(t, archive, res.Data)
}

func TestVideoSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, err := c.Video(context.Background(), "https://youtube.com/watch?v=abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestUnpackArchive(t *testing.T) {
	data := buildTestZip(t, map[string]string{
		"first.json":  `{"video_id":"v1","title":"First Video","channel_name":"Chan","transcript_text":"hello"}`,
		"second.json": `{"video_id":"v2","video_title":"Second","segments":[{"text":"a"},{"text":"b"}]}`,
		"broken.json": `{not json at all`,
	})

	items, err := UnpackArchive(data, testLogger())
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]int{items[0].VideoID: 0, items[1].VideoID: 1}

	first := items[byID["v1"]]
	assert.Equal(t, "First Video", *first.VideoTitle)
	assert.Equal(t, "Chan", *first.ChannelName)
	assert.Equal(t, "hello", *first.TranscriptText)

	second := items[byID["v2"]]
	assert.Equal(t, "Second", *second.VideoTitle)
	require.NotNil(t, second.TranscriptText)
	assert.Equal(t, "a b", *second.TranscriptText)
}

func TestUnpackArchiveFillsIdentityFromFilename(t *testing.T) {
	data := buildTestZip(t, map[string]string{
		"some video.json": `{"transcript_text":"anonymous"}`,
	})

	items, err := UnpackArchive(data, testLogger())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "some video.json", items[0].VideoID)
	assert.Equal(t, "some video", *items[0].VideoTitle)
}

func TestUnpackArchiveRejectsNonZip(t *testing.T) {
	_, err := UnpackArchive([]byte("this is not a zip"), testLogger())
	assert.Error(t, err)
}

func buildTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
