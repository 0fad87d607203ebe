package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var leadingTrackPattern = regexp.MustCompile(`^\s*\d+[\s._-]+`)

var bracketedPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

var yearPattern = regexp.MustCompile(`\d{4}`)

// parseNumericPair parses track and disc number tags, which come as
// either "N" or "N/M"; only the first segment counts.
func parseNumericPair(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	first := trimmed
	if slash := strings.Index(first, "/"); slash >= 0 {
		first = first[:slash]
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || parsed <= 0 {
		return nil
	}

	return &parsed
}

// parseYear pulls the first 4-digit run out of a date-like tag value,
// covering bare years and ISO dates alike.
func parseYear(value string) *int {
	match := yearPattern.FindString(strings.TrimSpace(value))
	if match == "" {
		return nil
	}

	parsed, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}

	return &parsed
}

// parseReplayGain parses values like "-6.50 dB" into a gain in dB.
func parseReplayGain(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(trimmed, "dB"), "db"))
	if trimmed == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}

	return &parsed
}

// deriveTitleFromFilename builds a display title for files with no tag
// title: the extension and any leading track-number prefix go, bracketed
// and parenthesized segments go, underscores become spaces.
func deriveTitleFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	title := leadingTrackPattern.ReplaceAllString(base, "")
	title = bracketedPattern.ReplaceAllString(title, "")
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.Join(strings.Fields(title), " ")

	if title == "" {
		return base
	}

	return title
}

func firstTagValue(tags map[string][]string, keys ...string) string {
	for _, key := range keys {
		values, ok := tags[key]
		if !ok {
			continue
		}
		for _, value := range values {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}
