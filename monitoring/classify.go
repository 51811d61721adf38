package monitoring

import "regexp"

// classificationPatterns is checked in order; the first match wins.
var classificationPatterns = []struct {
	reason  FailureReason
	pattern *regexp.Regexp
}{
	{ReasonQuality, regexp.MustCompile(`(?i)crc|par2|verif`)},
	{ReasonDiskSpace, regexp.MustCompile(`(?i)disk|space|full`)},
	{ReasonNetwork, regexp.MustCompile(`(?i)timeout|connection|reset|network`)},
	{ReasonAuthentication, regexp.MustCompile(`(?i)auth|unauthorized|forbidden`)},
}

// classify maps a failure message to a FailureReason.
func classify(failureMessage string) FailureReason {
	for _, p := range classificationPatterns {
		if p.pattern.MatchString(failureMessage) {
			return p.reason
		}
	}
	return ReasonUnknown
}
