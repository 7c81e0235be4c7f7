package handlers

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/supabase-community/postgrest-go"

	"tubescript/api-gateway/models"
	"tubescript/api-gateway/utils"
)

// AdminSessionHeader carries the back-office bearer session token.
const AdminSessionHeader = "X-Admin-Session"

// RequireAdmin guards back-office routes with a session token looked up in
// the admin_sessions table with an expiry check. Session issuance happens
// elsewhere; this is only the read-path guard.
func (h *ApplicationHandler) RequireAdmin(c *fiber.Ctx) error {
	token := c.Get(AdminSessionHeader)
	if token == "" {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	body, _, err := h.DB.From("admin_sessions").
		Select("admin_id", "", false).
		Eq("session_token", token).
		Gte("expires_at", time.Now().UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		h.Logger.WithError(err).Error("Admin session lookup failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not verify admin session")
	}

	var sessions []struct {
		AdminID *string `json:"admin_id"`
	}
	if err := json.Unmarshal(body, &sessions); err != nil || len(sessions) == 0 {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	return c.Next()
}

// activityEvent is one row of the merged admin activity feed.
type activityEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Source    string      `json:"source"`
}

// AdminAnalytics aggregates usage across all users with the service
// credential: user counts, subscription revenue, download totals and a
// merged recent-activity feed.
func (h *ApplicationHandler) AdminAnalytics(c *fiber.Ctx) error {
	period := c.Query("period", "30d")
	startDate := periodStart(period, time.Now())

	totalUsers, err := h.countRows("users", "")
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count users")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}
	newUsers, err := h.countRows("users", startDate)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count new users")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}

	subs, err := h.fetchSubscriptions()
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch subscriptions")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}

	totalDownloads, err := h.countRows("transcript_history", "")
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count downloads")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}
	downloadsInPeriod, err := h.countRows("transcript_history", startDate)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to count downloads in period")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}

	totalVideos, usersWithHistory, err := h.historyTotals()
	if err != nil {
		h.Logger.WithError(err).Error("Failed to aggregate history totals")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load analytics")
	}

	var active, canceled, started int
	var monthlyRevenue int64
	intervalBreakdown := map[string]int{"monthly": 0, "yearly": 0}
	for _, s := range subs {
		if s.Status == "active" {
			active++
			if s.Amount != nil {
				monthlyRevenue += *s.Amount
			}
			if s.Interval != nil {
				switch *s.Interval {
				case "month":
					intervalBreakdown["monthly"]++
				case "year":
					intervalBreakdown["yearly"]++
				}
			}
		}
		if s.CanceledAt != nil && time.Unix(*s.CanceledAt, 0).Format(time.RFC3339) >= startDate {
			canceled++
		}
		if s.StartedAt != nil && time.Unix(*s.StartedAt, 0).Format(time.RFC3339) >= startDate {
			started++
		}
	}

	activity, err := h.recentActivity()
	if err != nil {
		// Activity is best effort; the dashboard still renders without it.
		h.Logger.WithError(err).Warn("Failed to build recent activity feed")
		activity = []activityEvent{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"overview": fiber.Map{
			"totalUsers":             totalUsers,
			"newUsers":               newUsers,
			"activeSubscriptions":    active,
			"monthlyRevenue":         float64(monthlyRevenue) / 100,
			"totalDownloads":         totalDownloads,
			"downloadsInPeriod":      downloadsInPeriod,
			"totalVideosExtracted":   totalVideos,
			"uniqueUsersWithHistory": usersWithHistory,
		},
		"subscriptions": fiber.Map{
			"active":            active,
			"canceled":          canceled,
			"new":               started,
			"total":             len(subs),
			"intervalBreakdown": intervalBreakdown,
		},
		"history": fiber.Map{
			"totalExtractions":    totalDownloads,
			"extractionsInPeriod": downloadsInPeriod,
			"totalVideos":         totalVideos,
			"usersWithHistory":    usersWithHistory,
		},
		"recentActivity": activity,
		"period":         period,
	})
}

// AdminActivity returns the raw webhook event log.
func (h *ApplicationHandler) AdminActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	body, _, err := h.DB.From("webhook_events").
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch webhook events")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load activity log")
	}

	var events []models.WebhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		h.Logger.WithError(err).Error("Failed to decode webhook events")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load activity log")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, events)
}

func (h *ApplicationHandler) countRows(table, createdAfter string) (int64, error) {
	q := h.DB.From(table).Select("*", "exact", true)
	if createdAfter != "" {
		q = q.Gte("created_at", createdAfter)
	}
	_, count, err := q.Execute()
	if err != nil {
		return 0, fmt.Errorf("counting %s rows: %w", table, err)
	}
	return count, nil
}

func (h *ApplicationHandler) fetchSubscriptions() ([]models.Subscription, error) {
	body, _, err := h.DB.From("subscriptions").
		Select("status, amount, currency, created_at, canceled_at, started_at, interval", "", false).
		Execute()
	if err != nil {
		return nil, err
	}
	var subs []models.Subscription
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// historyTotals sums total_videos (defaulting to 1) across every entry and
// counts the distinct users with at least one entry.
func (h *ApplicationHandler) historyTotals() (int, int, error) {
	body, _, err := h.DB.From("transcript_history").
		Select("user_id, total_videos", "", false).
		Execute()
	if err != nil {
		return 0, 0, err
	}

	var rows []struct {
		UserID      string `json:"user_id"`
		TotalVideos *int   `json:"total_videos"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, 0, err
	}

	total := 0
	users := make(map[string]struct{})
	for _, r := range rows {
		if r.TotalVideos != nil && *r.TotalVideos > 0 {
			total += *r.TotalVideos
		} else {
			total++
		}
		users[r.UserID] = struct{}{}
	}
	return total, len(users), nil
}

// recentActivity merges recent webhook events and recent extractions into a
// single feed, newest first, capped at 15 entries.
func (h *ApplicationHandler) recentActivity() ([]activityEvent, error) {
	body, _, err := h.DB.From("webhook_events").
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(10, "").
		Execute()
	if err != nil {
		return nil, err
	}
	var events []models.WebhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, err
	}

	body, _, err = h.DB.From("transcript_history").
		Select("id, video_title, created_at, user_id, total_videos", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(10, "").
		Execute()
	if err != nil {
		return nil, err
	}
	var extractions []models.HistoryEntry
	if err := json.Unmarshal(body, &extractions); err != nil {
		return nil, err
	}

	feed := make([]activityEvent, 0, len(events)+len(extractions))
	for _, e := range events {
		feed = append(feed, activityEvent{
			ID:        e.ID,
			Type:      e.EventType,
			Timestamp: e.CreatedAt,
			Data:      e.Data,
			Source:    "webhook",
		})
	}
	for _, x := range extractions {
		ts := ""
		if x.CreatedAt != nil {
			ts = x.CreatedAt.Format(time.RFC3339)
		}
		feed = append(feed, activityEvent{
			ID:        x.ID,
			Type:      "transcript.extracted",
			Timestamp: ts,
			Data: fiber.Map{
				"video_title":  x.VideoTitle,
				"total_videos": x.VideoCount(),
			},
			Source: "extraction",
		})
	}

	sort.Slice(feed, func(i, j int) bool { return feed[i].Timestamp > feed[j].Timestamp })
	if len(feed) > 15 {
		feed = feed[:15]
	}
	return feed, nil
}

// periodStart maps a period query value onto an RFC3339 lower bound.
func periodStart(period string, now time.Time) string {
	start := now
	switch period {
	case "7d":
		start = now.AddDate(0, 0, -7)
	case "90d":
		start = now.AddDate(0, 0, -90)
	case "1y":
		start = now.AddDate(-1, 0, 0)
	default: // 30d
		start = now.AddDate(0, 0, -30)
	}
	return start.UTC().Format(time.RFC3339)
}
