// Package monitoring polls the Download, TvManager, and MovieManager
// upstreams for queue state and failure activity, classifies failures, and
// publishes the events the Recovery Loop and Activity Log consume.
package monitoring

import "time"

// DownloadStatus is the closed set of queue slot states.
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "Queued"
	StatusDownloading DownloadStatus = "Downloading"
	StatusVerifying   DownloadStatus = "Verifying"
	StatusExtracting  DownloadStatus = "Extracting"
	StatusCompleted   DownloadStatus = "Completed"
	StatusFailed      DownloadStatus = "Failed"
	StatusPaused      DownloadStatus = "Paused"
)

// DownloadItem is a materialized view of one queue slot.
type DownloadItem struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Status          DownloadStatus `json:"status"`
	ProgressPct     float64        `json:"progressPct"`
	SizeBytes       int64          `json:"sizeBytes"`
	RemainingBytes  int64          `json:"remainingBytes"`
	ETASeconds      int64          `json:"etaSeconds"`
	Category        string         `json:"category"`
}

// FailureReason classifies why a download failed.
type FailureReason string

const (
	ReasonNetwork        FailureReason = "Network"
	ReasonQuality        FailureReason = "Quality"
	ReasonDiskSpace      FailureReason = "DiskSpace"
	ReasonAuthentication FailureReason = "Authentication"
	ReasonUnknown        FailureReason = "Unknown"
)

// FailedDownload is a history slot classified as a failure.
type FailedDownload struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	FailureMessage   string        `json:"failureMessage"`
	Category         string        `json:"category"`
	CompletedAtUnix  int64         `json:"completedAtUnix"`
	DetectedAtUnix   int64         `json:"detectedAtUnix"`
	ClassifiedReason FailureReason `json:"classifiedReason"`
}

// FailurePattern is an aggregated count of same-reason failures within the
// pattern recognition window.
type FailurePattern struct {
	Reason           FailureReason `json:"reason"`
	Count            int           `json:"count"`
	RepresentativeIDs []string     `json:"representativeIds"`
	FirstSeenUnix    int64         `json:"firstSeenUnix"`
}

func now() time.Time { return time.Now() }
