package util

import (
	"strconv"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ParseDay accepts YYYY-MM-DD, RFC3339, unix seconds, "today", or an offset
// from today such as -30d, -12w, -1y. The result is truncated to a UTC day.
func ParseDay(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	today := truncateDay(now)
	if s == "today" {
		return today, true
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return truncateDay(t), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return truncateDay(time.Unix(ts, 0)), true
	}
	if len(s) >= 3 && (s[0] == '-' || s[0] == '+') {
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		if s[0] == '-' {
			n = -n
		}
		switch s[len(s)-1] {
		case 'd':
			return today.AddDate(0, 0, n), true
		case 'w':
			return today.AddDate(0, 0, 7*n), true
		case 'm':
			return today.AddDate(0, n, 0), true
		case 'y':
			return today.AddDate(n, 0, 0), true
		}
	}
	return time.Time{}, false
}

// ParseDayDefault parses a day or returns def if empty/invalid.
func ParseDayDefault(s string, now, def time.Time) time.Time {
	if t, ok := ParseDay(s, now); ok {
		return t
	}
	return def
}

// FormatDay renders t as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(dayLayout) }

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
