package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorTokenRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 31, 12, 30, 0, 123456789, time.UTC)
	c := CursorAfter(at, "rec-42")

	text, err := c.MarshalText()
	require.NoError(t, err)
	assert.NotEqual(t, exhaustedToken, string(text))

	parsed, err := ParseCursor(string(text))
	require.NoError(t, err)
	gotAt, gotID := parsed.Position()
	assert.True(t, at.Equal(gotAt))
	assert.Equal(t, "rec-42", gotID)
	assert.False(t, parsed.Exhausted())
}

func TestExhaustedCursorToken(t *testing.T) {
	text, err := NewExhaustedCursor().MarshalText()
	require.NoError(t, err)
	assert.Equal(t, exhaustedToken, string(text))

	parsed, err := ParseCursor(exhaustedToken)
	require.NoError(t, err)
	assert.True(t, parsed.Exhausted())
}

func TestNilCursorMarshalsAsExhausted(t *testing.T) {
	var c *Cursor
	text, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, exhaustedToken, string(text))
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "!!!", "bm8gc2VwYXJhdG9y", "bm90LWEtdGltZXxpZA"} {
		_, err := ParseCursor(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestLessOrdersNewestFirstThenIDAscending(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	assert.True(t, Less(newer, "b", older, "a"))
	assert.False(t, Less(older, "a", newer, "b"))
	assert.True(t, Less(newer, "a", newer, "b"))
	assert.False(t, Less(newer, "b", newer, "a"))
}
