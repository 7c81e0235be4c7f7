package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"tubescript/api-gateway/internal/archive"
	"tubescript/api-gateway/internal/history"
	"tubescript/api-gateway/middleware"
	"tubescript/api-gateway/utils"
)

// ListHistory godoc
// @Summary List the caller's transcript history
// @Description Returns the caller's history entries, newest first.
// @Tags history
// @Produce json
// @Param limit query int false "Maximum entries to return (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /history [get]
func (h *ApplicationHandler) ListHistory(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	limit := c.QueryInt("limit", history.DefaultListLimit)

	entries, err := h.Store.ListEntries(c.Context(), userID, limit)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list transcript history")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve history")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, entries)
}

// HistoryStats returns the caller's quota aggregation: total video
// downloads, entry counts by extraction type, and the 10 newest entries.
func (h *ApplicationHandler) HistoryStats(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	stats, err := h.Store.Stats(c.Context(), userID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to compute history stats")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve history stats")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"total_downloads":   stats.TotalDownloads,
		"downloads_by_type": stats.DownloadsByType,
		"recent_downloads":  stats.RecentDownloads,
		"free_limit":        history.FreeDownloadLimit,
		"reached_limit":     history.ReachedFreeLimit(stats),
	})
}

// GetHistoryItems returns the per-video items of one entry, for the
// transcript reader view.
func (h *ApplicationHandler) GetHistoryItems(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	entryID := c.Params("id")

	entry, err := h.Store.GetEntry(c.Context(), userID, entryID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, fmt.Sprintf("History entry %s not found", entryID))
		}
		h.Logger.WithError(err).Error("Failed to fetch history entry")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve history entry")
	}

	items, err := h.Store.GetItems(c.Context(), entry.ID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch transcript items")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve transcript items")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"entry": entry,
		"items": items,
	})
}

// DownloadHistoryEntry rebuilds the downloadable artifact for one entry
// from stored records and streams it back, without re-contacting the
// extraction service.
func (h *ApplicationHandler) DownloadHistoryEntry(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	entryID := c.Params("id")

	entry, err := h.Store.GetEntry(c.Context(), userID, entryID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, fmt.Sprintf("History entry %s not found", entryID))
		}
		h.Logger.WithError(err).Error("Failed to fetch history entry for download")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve history entry")
	}

	items, err := h.Store.GetItems(c.Context(), entry.ID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch transcript items for download")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve transcript items")
	}

	artifact, err := h.Archive.Reconstruct(*entry, items)
	if err != nil {
		if errors.Is(err, archive.ErrNoArchivedItems) {
			return utils.RespondWithError(c, fiber.StatusGone, err.Error())
		}
		h.Logger.WithError(err).Error("Failed to reconstruct artifact")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not rebuild the download")
	}

	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	return c.Status(fiber.StatusOK).Send(artifact.Data)
}

// DeleteHistoryEntry removes one entry owned by the caller. Deleting an
// entry that is already gone succeeds.
func (h *ApplicationHandler) DeleteHistoryEntry(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	entryID := c.Params("id")

	if err := h.Store.DeleteEntry(c.Context(), userID, entryID); err != nil {
		h.Logger.WithError(err).Error("Failed to delete history entry")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not delete history entry")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"deleted": entryID})
}

// ClearHistory removes all of the caller's entries. Idempotent.
func (h *ApplicationHandler) ClearHistory(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if err := h.Store.ClearHistory(c.Context(), userID); err != nil {
		h.Logger.WithError(err).Error("Failed to clear history")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not clear history")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"cleared": true})
}
