// Package timespec parses the time bounds used to filter cards by when they
// were posted.
package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification into a Unix timestamp in milliseconds,
// the unit card timestamps are stored in. Two formats are accepted:
//   - Go duration format: "1h", "30m", "1h30m" - relative to now, looking
//     back ("1h" means one hour ago)
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
func Parse(spec string) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	// Absolute timestamps first; a bare number like "15" is not a valid
	// duration either, so the fallthrough error covers both.
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseRange parses the --since and --until listing flags into a pair of
// millisecond timestamps bounding which cards to show. A zero value means
// that end of the range is unbounded. When both are given, since must fall
// before until.
func ParseRange(since, until string) (int64, int64, error) {
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		sinceMS, err = Parse(since)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilMS, err = Parse(until)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, nil
}
