package util

import (
    "strconv"
    "time"
)

// Epoch values above this are milliseconds, not seconds. The cutoff is
// Sep 2001 in millis and year 33658 in seconds, far outside real event times.
const epochMillisCutoff = int64(1e12)

// ParseTime tries RFC3339, RFC3339Nano, and unix epoch (seconds or millis).
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        if ts > epochMillisCutoff {
            return time.UnixMilli(ts), true
        }
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// No extra helpers here; use strconv where needed.