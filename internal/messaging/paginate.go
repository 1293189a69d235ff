package messaging

import (
	"fmt"
	"time"
)

// Keyset pagination helpers. A cursor is the RFC3339Nano timestamp of the
// last row on a page; pages fetch limit+1 rows strictly older than it so
// "has more" falls out without a count query, and concurrent inserts above
// the cursor never shift rows already paginated.

// ParseCursor parses an optional cursor query value. Empty means "from the
// most recent".
func ParseCursor(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return &t, nil
}

// FormatCursor renders a row timestamp as an opaque cursor string.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ClampLimit resolves the requested page size against defaults and the cap.
func ClampLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// trimPage applies the overfetch-by-one rule: rows were fetched with
// LIMIT limit+1; if the extra row came back the page has more beyond it.
func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

// nextCursor returns the cursor for the following page, or nil when the
// traversal is exhausted.
func nextCursor(hasMore bool, last time.Time) *string {
	if !hasMore {
		return nil
	}
	c := FormatCursor(last)
	return &c
}
