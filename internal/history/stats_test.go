package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"tubescript/api-gateway/models"
)

func intp(n int) *int { return &n }

func TestComputeStatsSumsVideos(t *testing.T) {
	entries := []models.HistoryEntry{
		{DownloadType: models.DownloadSingle, TotalVideos: intp(1)},
		{DownloadType: models.DownloadChannel, TotalVideos: intp(40)},
		{DownloadType: models.DownloadSingle}, // missing total counts as 1
	}

	stats := ComputeStats(entries)

	assert.Equal(t, 41, stats.TotalDownloads)
	assert.Equal(t, 2, stats.DownloadsByType["single"])
	assert.Equal(t, 1, stats.DownloadsByType["channel"])
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Equal(t, 0, stats.TotalDownloads)
	assert.Empty(t, stats.DownloadsByType)
	assert.Empty(t, stats.RecentDownloads)
}

func TestComputeStatsRecentIsCappedAtTen(t *testing.T) {
	entries := make([]models.HistoryEntry, 14)
	for i := range entries {
		entries[i] = models.HistoryEntry{
			ID:           fmt.Sprintf("entry-%d", i),
			DownloadType: models.DownloadSingle,
		}
	}

	stats := ComputeStats(entries)

	assert.Len(t, stats.RecentDownloads, 10)
	// Entries arrive newest first; the cap keeps the newest.
	assert.Equal(t, "entry-0", stats.RecentDownloads[0].ID)
}

func TestComputeStatsUnknownType(t *testing.T) {
	stats := ComputeStats([]models.HistoryEntry{{}})
	assert.Equal(t, 1, stats.DownloadsByType["unknown"])
}

func TestFreeLimitIsInclusive(t *testing.T) {
	assert.False(t, ReachedFreeLimit(&Stats{TotalDownloads: 24}))
	assert.True(t, ReachedFreeLimit(&Stats{TotalDownloads: 25}))
	assert.True(t, ReachedFreeLimit(&Stats{TotalDownloads: 26}))
}
