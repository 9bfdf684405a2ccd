package parse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sureflap-monitor/internal/surehub"
)

func TestWhere(t *testing.T) {
	testCases := []struct {
		raw       string
		expected  surehub.Where
		expectErr bool
	}{
		{raw: "inside", expected: surehub.Inside},
		{raw: " Inside ", expected: surehub.Inside},
		{raw: "1", expected: surehub.Inside},
		{raw: "outside", expected: surehub.Outside},
		{raw: "OUT", expected: surehub.Outside},
		{raw: "2", expected: surehub.Outside},
		{raw: "3", expectErr: true},
		{raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := Where(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	london := time.FixedZone("BST", 3600)

	testCases := []struct {
		name      string
		raw       string
		expected  time.Time
		expectErr bool
	}{
		{name: "Empty means now", raw: "", expected: time.Time{}},
		{name: "Literal now", raw: "now", expected: time.Time{}},
		{name: "Offset", raw: "-15m", expected: now.Add(-15 * time.Minute)},
		{name: "Offset with space", raw: "- 2h30m", expected: now.Add(-150 * time.Minute)},
		{name: "RFC 3339", raw: "2024-02-29T08:30:00+01:00", expected: time.Date(2024, 2, 29, 7, 30, 0, 0, time.UTC)},
		{name: "RFC 3339 millis", raw: "2024-02-29T08:30:00.250Z", expected: time.Date(2024, 2, 29, 8, 30, 0, 250_000_000, time.UTC)},
		{name: "Date", raw: "2024-07-01", expected: time.Date(2024, 7, 1, 0, 0, 0, 0, london)},
		{name: "Bad offset", raw: "-soon", expectErr: true},
		{name: "Garbage", raw: "yesterday", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Since(tc.raw, now, london)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestReportArgs(t *testing.T) {
	args, err := ReportArgs([]string{"from=2024-01-01", "to=2024-01-07", "type[]=1", "type[]=2", "empty="})
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"from":   {"2024-01-01"},
		"to":     {"2024-01-07"},
		"type[]": {"1", "2"},
		"empty":  {""},
	}, args)

	_, err = ReportArgs([]string{"novalue"})
	assert.ErrorContains(t, err, "want key=value")

	_, err = ReportArgs([]string{"=x"})
	assert.Error(t, err)

	args, err = ReportArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestID(t *testing.T) {
	id, err := ID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := ID(raw)
		assert.Error(t, err, raw)
	}
}
