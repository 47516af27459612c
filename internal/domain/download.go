package domain

import "time"

// DownloadStatus is the state of a download task.
type DownloadStatus string

// Download statuses. "downloaded" is transient: the row is deleted on success.
const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadDownloaded  DownloadStatus = "downloaded"
	DownloadError       DownloadStatus = "error"
)

// Download is an acquisition task for one chapter.
type Download struct {
	ID        int64
	ChapterID int64
	Status    DownloadStatus
	Percent   float64
	Errors    int
	Date      time.Time
}

// ClampPercent keeps p within [0, 100].
func ClampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}

// PagePercent is the completion after page i (0-based) of n.
func PagePercent(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return ClampPercent(float64(i+1) * 100 / float64(n))
}
