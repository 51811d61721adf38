// Package recovery reacts to download.failed events, chooses a retry
// strategy per spec.md §4.7, and drives the Download/TvManager/MovieManager
// upstreams through the Orchestrator to execute it.
package recovery

// Strategy is the chosen recovery action for one retry attempt.
type Strategy string

const (
	StrategyImmediate        Strategy = "Immediate"
	StrategyBackoff          Strategy = "Backoff"
	StrategyQualityFallback  Strategy = "QualityFallback"
	StrategyAlternativeSearch Strategy = "AlternativeSearch"
)

// Outcome is the terminal state of one RetryAttempt.
type Outcome string

const (
	OutcomePending Outcome = "Pending"
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failure"
)

// RetryAttempt records one retry decision for a downloadId.
type RetryAttempt struct {
	DownloadID      string   `json:"downloadId"`
	Strategy        Strategy `json:"strategy"`
	AttemptNumber   int      `json:"attemptNumber"`
	ScheduledAtUnix int64    `json:"scheduledAtUnix"`
	Outcome         Outcome  `json:"outcome"`
}

// qualityChain is the fixed downgrade ladder (spec §4.7).
var qualityChain = []string{"2160p", "1080p", "720p", "HDTV"}

// nextLowerQuality returns the next tier below current, and false if
// current is unrecognized or already at the bottom of the chain.
func nextLowerQuality(current string) (string, bool) {
	for i, tier := range qualityChain {
		if tier == current && i+1 < len(qualityChain) {
			return qualityChain[i+1], true
		}
	}
	return "", false
}
