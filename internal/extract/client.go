// Package extract is the client for the external transcript-extraction
// service. The service accepts a video, channel or CSV reference and
// returns either a JSON payload or a zip byte stream, with the processed
// video count carried in response headers.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ResultKind distinguishes the two response shapes of the extraction
// service.
type ResultKind int

const (
	// ResultJSON is a single/small JSON transcript payload.
	ResultJSON ResultKind = iota
	// ResultArchive is a zip stream of per-video JSON transcripts.
	ResultArchive
)

// Result is one completed extraction response, fully buffered. Bulk jobs
// can run for minutes; a truncated stream is reported as an error rather
// than a partial result.
type Result struct {
	Kind       ResultKind
	Data       []byte
	VideoCount int
	Filename   string
}

// Client talks to the extraction service over HTTP with a bearer token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *logrus.Logger
}

// NewClient builds a Client. The timeout covers the whole response body;
// channel extractions are slow, so it is generous.
func NewClient(baseURL, token string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Minute},
		log:     log,
	}
}

// Video extracts the transcript of a single video.
func (c *Client) Video(ctx context.Context, videoURL string) (*Result, error) {
	return c.post(ctx, "/transcribe", map[string]string{"video_url": videoURL})
}

// Channel extracts transcripts for every video of a channel or playlist.
func (c *Client) Channel(ctx context.Context, channelURL string) (*Result, error) {
	return c.post(ctx, "/transcribe-channel", map[string]string{"channel_url": channelURL})
}

// CSV extracts transcripts for an explicit list of video URLs.
func (c *Client) CSV(ctx context.Context, videoURLs []string) (*Result, error) {
	return c.post(ctx, "/transcribe-csv", map[string][]string{"video_urls": videoURLs})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// A short read against Content-Length means the stream was cut off
		// mid-archive; the whole operation is reported as failed.
		return nil, fmt.Errorf("extraction stream truncated: %w", err)
	}

	res := &Result{
		Kind:       resultKind(resp.Header),
		Data:       data,
		VideoCount: videoCount(resp.Header),
		Filename:   attachmentFilename(resp.Header),
	}

	c.log.WithFields(logrus.Fields{
		"path":        path,
		"bytes":       len(data),
		"video_count": res.VideoCount,
		"archive":     res.Kind == ResultArchive,
		"elapsed_ms":  time.Since(started).Milliseconds(),
	}).Info("Extraction completed")
	return res, nil
}

func resultKind(h http.Header) ResultKind {
	ct := h.Get("Content-Type")
	if strings.Contains(ct, "application/zip") || strings.Contains(ct, "application/octet-stream") {
		return ResultArchive
	}
	return ResultJSON
}

// countFilenamePattern matches the "<n>of<total>videos" marker the service
// embeds in archive filenames, e.g. "csv_sample_urls_4of4videos_...".
var countFilenamePattern = regexp.MustCompile(`(\d+)of(\d+)videos`)

// videoCount reads the processed-video count from the X-Total-Videos (or
// X-Video-Count) header, falling back to the content-disposition filename
// pattern, then to 1.
func videoCount(h http.Header) int {
	for _, header := range []string{"X-Total-Videos", "X-Video-Count"} {
		if v := h.Get(header); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	if m := countFilenamePattern.FindStringSubmatch(h.Get("Content-Disposition")); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func attachmentFilename(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
