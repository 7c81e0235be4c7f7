package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"tubescript/api-gateway/internal/extract"
	"tubescript/api-gateway/internal/history"
	"tubescript/api-gateway/middleware"
	"tubescript/api-gateway/models"
	"tubescript/api-gateway/utils"
)

var validate = validator.New()

// ExtractVideoRequest is the payload for single-video extraction.
type ExtractVideoRequest struct {
	VideoURL string `json:"video_url" validate:"required,url"`
}

// ExtractChannelRequest is the payload for channel/playlist extraction.
type ExtractChannelRequest struct {
	ChannelURL string `json:"channel_url" validate:"required,url"`
}

// ExtractVideo extracts a single video transcript, records it in history,
// and returns the transcript. A history write failure does not fail the
// request: the transcript is returned with history_saved=false so the user
// can be warned.
func (h *ApplicationHandler) ExtractVideo(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	payload := new(ExtractVideoRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse JSON: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, strings.Join(utils.FormatValidationErrors(err), ", "))
	}

	res, err := h.Extractor.Video(c.Context(), payload.VideoURL)
	if err != nil {
		h.Logger.WithError(err).Error("Single video extraction failed")
		return utils.RespondWithError(c, fiber.StatusBadGateway, "Transcript extraction failed")
	}

	meta := parseResultMeta(res.Data)
	resolved := models.ResolvePayload(res.Data)

	entry := models.HistoryEntry{
		UserID:         userID,
		VideoID:        payload.VideoURL,
		DownloadType:   models.DownloadSingle,
		TranscriptJSON: json.RawMessage(res.Data),
	}
	if meta.title != "" {
		entry.VideoTitle = &meta.title
	}
	if meta.channel != "" {
		entry.ChannelName = &meta.channel
	}
	if resolved.Text != "" {
		text := resolved.Text
		entry.TranscriptText = &text
	}

	saved, warning := h.saveEntryAndItems(c.Context(), userID, entry, singleItem(entry, meta))

	response := fiber.Map{
		"transcript_text": resolved.Text,
		"transcript_json": json.RawMessage(res.Data),
		"history_saved":   saved != nil,
	}
	if saved != nil {
		response["entry"] = saved
	}
	if warning != "" {
		response["warning"] = warning
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, response)
}

// ExtractChannel extracts every transcript of a channel or playlist and
// streams the resulting archive. Gated behind the free-tier quota.
func (h *ApplicationHandler) ExtractChannel(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	payload := new(ExtractChannelRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse JSON: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, strings.Join(utils.FormatValidationErrors(err), ", "))
	}

	if err := h.checkBulkQuota(c.Context(), userID); err != nil {
		return h.respondQuotaError(c, err)
	}

	res, err := h.Extractor.Channel(c.Context(), payload.ChannelURL)
	if err != nil {
		h.Logger.WithError(err).Error("Channel extraction failed")
		return utils.RespondWithError(c, fiber.StatusBadGateway, "Transcript extraction failed")
	}

	return h.deliverBulkResult(c, userID, payload.ChannelURL, "Channel/Playlist extraction", models.DownloadChannel, res)
}

// ExtractCSV extracts transcripts for a CSV of video URLs uploaded as
// multipart form data. Gated behind the free-tier quota.
func (h *ApplicationHandler) ExtractCSV(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Missing CSV file: %v", err))
	}

	urls, err := readCSVURLs(file)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse CSV: %v", err))
	}
	if len(urls) == 0 {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "CSV contains no video URLs")
	}

	if err := h.checkBulkQuota(c.Context(), userID); err != nil {
		return h.respondQuotaError(c, err)
	}

	res, err := h.Extractor.CSV(c.Context(), urls)
	if err != nil {
		h.Logger.WithError(err).Error("CSV extraction failed")
		return utils.RespondWithError(c, fiber.StatusBadGateway, "Transcript extraction failed")
	}

	return h.deliverBulkResult(c, userID, file.Filename, "CSV extraction", models.DownloadCSV, res)
}

// deliverBulkResult persists a bulk extraction result and streams the
// artifact back. The artifact is already in hand, so persistence failures
// degrade to warning headers rather than failing the download.
func (h *ApplicationHandler) deliverBulkResult(c *fiber.Ctx, userID, sourceRef, title string, dtype models.DownloadType, res *extract.Result) error {
	if res.Kind == extract.ResultArchive {
		items, err := extract.UnpackArchive(res.Data, h.Logger)
		if err != nil {
			// The archive still goes to the user; only item storage is lost.
			h.Logger.WithError(err).Warn("Could not unpack extraction archive for storage")
			items = nil
		}

		marker, _ := json.Marshal(models.ArchiveMetadata{
			Type:  "zip",
			Size:  int64(len(res.Data)),
			Count: res.VideoCount,
		})
		note := "ZIP file download"
		entry := models.HistoryEntry{
			UserID:         userID,
			VideoID:        sourceRef,
			VideoTitle:     &title,
			DownloadType:   dtype,
			TranscriptText: &note,
			TranscriptJSON: marker,
			TotalVideos:    &res.VideoCount,
		}

		saved, warning := h.saveEntryAndItems(c.Context(), userID, entry, items)

		filename := res.Filename
		if filename == "" {
			filename = fmt.Sprintf("transcripts-%d.zip", time.Now().UnixMilli())
		}
		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
		c.Set("X-History-Saved", fmt.Sprintf("%t", saved != nil))
		if warning != "" {
			c.Set("X-History-Warning", warning)
		}
		return c.Status(fiber.StatusOK).Send(res.Data)
	}

	// Small results come back as plain JSON instead of an archive.
	entry := models.HistoryEntry{
		UserID:         userID,
		VideoID:        sourceRef,
		VideoTitle:     &title,
		DownloadType:   dtype,
		TranscriptJSON: json.RawMessage(res.Data),
		TotalVideos:    &res.VideoCount,
	}
	saved, warning := h.saveEntryAndItems(c.Context(), userID, entry, nil)

	response := fiber.Map{
		"result":        json.RawMessage(res.Data),
		"total_videos":  res.VideoCount,
		"history_saved": saved != nil,
	}
	if warning != "" {
		response["warning"] = warning
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, response)
}

// saveEntryAndItems persists the history entry and, when it succeeds, its
// items. Neither failure is retried: the caller already holds the artifact
// and proceeds with a warning instead.
func (h *ApplicationHandler) saveEntryAndItems(ctx context.Context, userID string, entry models.HistoryEntry, items []models.TranscriptItem) (*models.HistoryEntry, string) {
	saved, err := h.Store.SaveEntry(ctx, userID, entry)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to save transcript history")
		if errors.Is(err, history.ErrUnauthenticated) || errors.Is(err, history.ErrOwnershipMismatch) {
			return nil, "Download succeeded but could not be saved to history. Please check your authentication."
		}
		return nil, "Download succeeded but could not be saved to history."
	}

	if len(items) > 0 {
		if err := h.Store.SaveItems(ctx, saved.ID, items); err != nil {
			// Accepted degraded state: the entry exists without items and
			// the reconstructor falls back to the entry's own fields.
			h.Logger.WithError(err).WithField("history_id", saved.ID).Error("Failed to save transcript items")
			return saved, "History saved, but individual transcripts could not be stored."
		}
	}
	return saved, ""
}

// checkBulkQuota applies the free-tier gate before the extraction service
// is contacted. The writer enforces it again at save time.
func (h *ApplicationHandler) checkBulkQuota(ctx context.Context, userID string) error {
	stats, err := h.Store.Stats(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking download quota: %w", err)
	}
	if !history.ReachedFreeLimit(stats) {
		return nil
	}
	subscribed, err := h.Store.HasActiveSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking subscription: %w", err)
	}
	if !subscribed {
		return history.ErrQuotaExceeded
	}
	return nil
}

func (h *ApplicationHandler) respondQuotaError(c *fiber.Ctx, err error) error {
	if errors.Is(err, history.ErrQuotaExceeded) {
		return utils.RespondWithError(c, fiber.StatusPaymentRequired,
			fmt.Sprintf("You've reached the free limit of %d downloads. Please subscribe to continue using bulk extraction and CSV export features.", history.FreeDownloadLimit))
	}
	h.Logger.WithError(err).Error("Quota check failed")
	return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not verify download quota")
}

// resultMeta is the video metadata embedded in a single-video extraction
// response.
type resultMeta struct {
	title   string
	channel string
	videoID string
}

func parseResultMeta(data []byte) resultMeta {
	var raw struct {
		VideoID     string `json:"video_id"`
		Title       string `json:"title"`
		VideoTitle  string `json:"video_title"`
		ChannelName string `json:"channel_name"`
	}
	_ = json.Unmarshal(data, &raw)

	meta := resultMeta{channel: raw.ChannelName, videoID: raw.VideoID}
	meta.title = raw.Title
	if meta.title == "" {
		meta.title = raw.VideoTitle
	}
	return meta
}

// singleItem builds the one TranscriptItem backing a single-video entry.
func singleItem(entry models.HistoryEntry, meta resultMeta) []models.TranscriptItem {
	item := models.TranscriptItem{
		VideoID:        entry.VideoID,
		VideoTitle:     entry.VideoTitle,
		ChannelName:    entry.ChannelName,
		TranscriptText: entry.TranscriptText,
		TranscriptJSON: entry.TranscriptJSON,
	}
	if meta.videoID != "" {
		item.VideoID = meta.videoID
	}
	return []models.TranscriptItem{item}
}

// readCSVURLs pulls video URLs from the first column of an uploaded CSV,
// skipping a header row when present.
func readCSVURLs(file *multipart.FileHeader) ([]string, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(records))
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		value := strings.TrimSpace(record[0])
		if value == "" || !strings.HasPrefix(value, "http") {
			continue
		}
		urls = append(urls, value)
	}
	return urls, nil
}
