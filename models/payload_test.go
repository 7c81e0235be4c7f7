package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePayloadPlainText(t *testing.T) {
	raw := json.RawMessage(`{"video_id":"abc","transcript_text":"hello world"}`)
	p := ResolvePayload(raw)

	assert.Equal(t, PayloadPlainText, p.Kind)
	assert.Equal(t, "hello world", p.Text)
}

func TestResolvePayloadTranscriptString(t *testing.T) {
	raw := json.RawMessage(`{"transcript":"just a string"}`)
	p := ResolvePayload(raw)

	assert.Equal(t, PayloadPlainText, p.Kind)
	assert.Equal(t, "just a string", p.Text)
}

func TestResolvePayloadTranscriptSegments(t *testing.T) {
	raw := json.RawMessage(`{"transcript":[{"text":"first"},{"text":"second"}]}`)
	p := ResolvePayload(raw)

	assert.Equal(t, PayloadSegments, p.Kind)
	assert.Equal(t, "first second", p.Text)
}

func TestResolvePayloadSegmentsArray(t *testing.T) {
	raw := json.RawMessage(`{"segments":[{"text":"a"},{"text":""},{"text":"b"}]}`)
	p := ResolvePayload(raw)

	assert.Equal(t, PayloadSegments, p.Kind)
	assert.Equal(t, "a b", p.Text)
}

func TestResolvePayloadUnrecognized(t *testing.T) {
	raw := json.RawMessage(`{"something":"else"}`)
	p := ResolvePayload(raw)

	assert.Equal(t, PayloadRaw, p.Kind)
	assert.Empty(t, p.Text)
}

func TestItemTextFallbackOrder(t *testing.T) {
	text := "column text"

	// transcript_json wins when it carries usable text.
	item := TranscriptItem{
		TranscriptText: &text,
		TranscriptJSON: json.RawMessage(`{"transcript_text":"json text"}`),
	}
	assert.Equal(t, "json text", item.Text())

	// Column text is next.
	item = TranscriptItem{
		TranscriptText: &text,
		TranscriptJSON: json.RawMessage(`{"other":"shape"}`),
	}
	assert.Equal(t, "column text", item.Text())

	// A raw JSON dump is the last resort.
	item = TranscriptItem{TranscriptJSON: json.RawMessage(`{"other":"shape"}`)}
	assert.Contains(t, item.Text(), `"other"`)

	// Nothing at all resolves to empty.
	assert.Empty(t, TranscriptItem{}.Text())
}

func TestIsArchiveMarker(t *testing.T) {
	assert.True(t, IsArchiveMarker(json.RawMessage(`{"type":"zip","size":100,"count":4}`)))
	assert.False(t, IsArchiveMarker(json.RawMessage(`{"transcript_text":"hi"}`)))
	assert.False(t, IsArchiveMarker(nil))
	assert.False(t, IsArchiveMarker(json.RawMessage(`not json`)))
}

func TestVideoCountDefaults(t *testing.T) {
	assert.Equal(t, 1, HistoryEntry{}.VideoCount())

	zero := 0
	assert.Equal(t, 1, HistoryEntry{TotalVideos: &zero}.VideoCount())

	forty := 40
	assert.Equal(t, 40, HistoryEntry{TotalVideos: &forty}.VideoCount())
}
