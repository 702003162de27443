package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("duration is relative to now", func(t *testing.T) {
		got, err := Parse("1h")
		require.NoError(t, err)
		want := time.Now().Add(-time.Hour).UnixMilli()
		assert.InDelta(t, want, got, 1000)
	})

	t.Run("RFC3339 timestamp", func(t *testing.T) {
		got, err := Parse("2025-10-29T13:00:00Z")
		require.NoError(t, err)
		want, _ := time.Parse(time.RFC3339, "2025-10-29T13:00:00Z")
		assert.Equal(t, want.UnixMilli(), got)
	})

	t.Run("empty spec is rejected", func(t *testing.T) {
		_, err := Parse("")
		assert.Error(t, err)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := Parse("yesterday-ish")
		assert.Error(t, err)
	})
}

func TestParseRange(t *testing.T) {
	t.Run("empty bounds mean unbounded", func(t *testing.T) {
		since, until, err := ParseRange("", "")
		require.NoError(t, err)
		assert.Zero(t, since)
		assert.Zero(t, until)
	})

	t.Run("since must precede until", func(t *testing.T) {
		_, _, err := ParseRange("1h", "2h")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--since must be before --until")
	})

	t.Run("valid range", func(t *testing.T) {
		since, until, err := ParseRange("2h", "1h")
		require.NoError(t, err)
		assert.Less(t, since, until)
	})
}
