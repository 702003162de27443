package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestErrorWithContext(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		context := map[string]string{
			"Board": "sprint-42-retro",
			"Redis": "localhost:6379",
		}
		err := ErrorWithContext("Test Error", "Explanation", context, []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		context := map[string]string{"Key": "Value"}
		err := ErrorWithContext("Test Error", "Explanation", context, []string{"Fix it"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestAmbiguousID(t *testing.T) {
	t.Run("returns error naming the prefix", func(t *testing.T) {
		err := AmbiguousID("abc123", []string{"abc123-first", "abc123-second"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "abc123")
	})

	t.Run("long candidate lists are handled", func(t *testing.T) {
		matches := make([]string, 14)
		for i := range matches {
			matches[i] = "abc123-candidate"
		}
		err := AmbiguousID("abc123", matches)
		require.Error(t, err)
	})
}

func TestTheme(t *testing.T) {
	t.Run("known theme returns distinct color", func(t *testing.T) {
		require.NotEqual(t, plain, Theme("purple"))
	})

	t.Run("unknown theme falls back to plain", func(t *testing.T) {
		require.Equal(t, plain, Theme("chartreuse"))
	})
}

func TestAuthor(t *testing.T) {
	t.Run("empty name renders placeholder", func(t *testing.T) {
		require.Equal(t, "unknown", Author("", "teal"))
	})

	t.Run("name survives rendering", func(t *testing.T) {
		require.Contains(t, Author("ada", "teal"), "ada")
	})
}

// Note: The Error and ErrorWithContext functions print formatted output to stderr
// with colors. The error object returned only contains the title for Cobra's error handling.
// This is intentional to avoid duplicate output while providing rich formatted errors.
