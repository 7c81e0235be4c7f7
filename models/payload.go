package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PayloadKind identifies the shape a transcript payload arrived in. The
// extraction service returns transcripts in several shapes: a flat
// transcript_text string, a transcript that is itself a string or a segment
// list, or a separate segments array. Payloads are resolved into this tagged
// form once at ingestion so read paths never re-sniff JSON shapes.
type PayloadKind int

const (
	// PayloadRaw is a JSON payload with no recognizable transcript field.
	PayloadRaw PayloadKind = iota
	// PayloadPlainText carries a flat transcript string.
	PayloadPlainText
	// PayloadSegments carries a segment list whose texts were concatenated.
	PayloadSegments
)

// TranscriptPayload is the normalized form of a per-video transcript JSON
// payload.
type TranscriptPayload struct {
	Kind PayloadKind
	Text string
	Raw  json.RawMessage
}

type transcriptSegment struct {
	Text string `json:"text"`
}

type transcriptEnvelope struct {
	TranscriptText string              `json:"transcript_text"`
	Transcript     json.RawMessage     `json:"transcript"`
	Segments       []transcriptSegment `json:"segments"`
}

// ResolvePayload normalizes a raw transcript JSON payload into a
// TranscriptPayload, trying transcript_text, then a string or segment-list
// transcript field, then a segments array.
func ResolvePayload(raw json.RawMessage) TranscriptPayload {
	p := TranscriptPayload{Kind: PayloadRaw, Raw: raw}
	if len(raw) == 0 {
		return p
	}

	var env transcriptEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return p
	}

	if env.TranscriptText != "" {
		p.Kind = PayloadPlainText
		p.Text = env.TranscriptText
		return p
	}

	if len(env.Transcript) > 0 {
		var s string
		if err := json.Unmarshal(env.Transcript, &s); err == nil && s != "" {
			p.Kind = PayloadPlainText
			p.Text = s
			return p
		}
		var segs []transcriptSegment
		if err := json.Unmarshal(env.Transcript, &segs); err == nil && len(segs) > 0 {
			p.Kind = PayloadSegments
			p.Text = joinSegments(segs)
			return p
		}
	}

	if len(env.Segments) > 0 {
		p.Kind = PayloadSegments
		p.Text = joinSegments(env.Segments)
		return p
	}

	return p
}

func joinSegments(segs []transcriptSegment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// PrettyJSON re-indents a raw JSON value the way the web client exported it.
func PrettyJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
