package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 10, 10, 15, 4, 5, 0, time.UTC)

func TestParseDayForms(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-02":           time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"2024-10-10T10:10:10Z": time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC),
		"today":                time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC),
		"-30d":                 time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
		"-2w":                  time.Date(2024, 9, 26, 0, 0, 0, 0, time.UTC),
		"-1y":                  time.Date(2023, 10, 10, 0, 0, 0, 0, time.UTC),
		"+1m":                  time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseDay(in, now)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	ts := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC).Unix()
	got, ok := ParseDay(strconv.FormatInt(ts, 10), now)
	require.True(t, ok)
	assert.Equal(t, "2024-03-04", FormatDay(got))

	for _, bad := range []string{"", "yesterday", "-3x", "01/02/2024"} {
		_, ok := ParseDay(bad, now)
		assert.False(t, ok, bad)
	}
}

func TestParseDayDefault(t *testing.T) {
	def := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseDayDefault("", now, def))
}

func TestListHelpers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, SplitList(" AAPL, ,MSFT,"))
	assert.Nil(t, SplitList(""))

	ints, err := ParseIntList("1, 5,10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 10}, ints)
	_, err = ParseIntList("1,x")
	assert.Error(t, err)

	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}
