package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// absoluteLayouts are tried in order against trimmed date text.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var (
	relativeEN = regexp.MustCompile(`(\d+)\s*(hour|day|week|month)s?\s*ago`)
	relativeFR = regexp.MustCompile(`il y a\s*(\d+)\s*(heure|jour|semaine|mois)s?`)
)

// ParseDate turns the published-date text of a posting into a UTC time.
// Empty text defaults to now (boards often omit the date entirely);
// non-empty text that matches nothing is an error so the caller can
// reject the candidate instead of fabricating a date.
func ParseDate(text string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return now.UTC(), nil
	}

	for _, layout := range absoluteLayouts {
		if at, err := time.Parse(layout, trimmed); err == nil {
			return at.UTC(), nil
		}
	}

	lower := strings.ToLower(trimmed)
	switch lower {
	case "today", "aujourd'hui", "aujourd’hui":
		return now.UTC(), nil
	case "yesterday", "hier":
		return now.AddDate(0, 0, -1).UTC(), nil
	}

	if m := relativeEN.FindStringSubmatch(lower); m != nil {
		return relativeOffset(now, m[1], m[2])
	}
	if m := relativeFR.FindStringSubmatch(lower); m != nil {
		return relativeOffset(now, m[1], translateUnit(m[2]))
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", text)
}

func relativeOffset(now time.Time, amount, unit string) (time.Time, error) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad relative amount %q", amount)
	}
	switch unit {
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour).UTC(), nil
	case "day":
		return now.AddDate(0, 0, -n).UTC(), nil
	case "week":
		return now.AddDate(0, 0, -7*n).UTC(), nil
	case "month":
		return now.AddDate(0, -n, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("bad relative unit %q", unit)
	}
}

func translateUnit(unit string) string {
	switch unit {
	case "heure":
		return "hour"
	case "jour":
		return "day"
	case "semaine":
		return "week"
	case "mois":
		return "month"
	}
	return unit
}
