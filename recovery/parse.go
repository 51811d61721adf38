package recovery

import (
	"regexp"
	"strings"
)

var (
	episodeToken = regexp.MustCompile(`(?i)s\d{1,2}e\d{1,3}|season\s*\d+`)
	qualityToken = regexp.MustCompile(`(?i)2160p|1080p|720p|hdtv`)
)

// isTVRelease reports whether name carries a season/episode token.
func isTVRelease(name string) bool {
	return episodeToken.MatchString(name)
}

// extractQuality returns the normalized quality tier token found in name
// (one of qualityChain's entries), or "" if none appears.
func extractQuality(name string) string {
	m := qualityToken.FindString(name)
	if m == "" {
		return ""
	}
	upper := strings.ToUpper(m)
	for _, tier := range qualityChain {
		if strings.ToUpper(tier) == upper {
			return tier
		}
	}
	return ""
}

var releaseNoise = regexp.MustCompile(`(?i)s\d{1,2}e\d{1,3}|season\s*\d+|2160p|1080p|720p|hdtv|x264|x265|web-?dl|bluray|hdr|\[.*?\]`)

// extractTitle strips episode/quality/codec tokens from a release name and
// returns the remaining human-readable title, used to search the manager
// upstream for the underlying item (spec §4.7 step 4, QualityFallback and
// AlternativeSearch).
func extractTitle(name string) string {
	cleaned := strings.NewReplacer(".", " ", "_", " ").Replace(name)
	cleaned = releaseNoise.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(cleaned), " "))
}
