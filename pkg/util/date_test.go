package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTradingHours(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"midday tuesday", time.Date(2026, 9, 1, 12, 0, 0, 0, ny), true},
		{"at open", time.Date(2026, 9, 1, 9, 30, 0, 0, ny), true},
		{"before open", time.Date(2026, 9, 1, 9, 29, 0, 0, ny), false},
		{"at close", time.Date(2026, 9, 1, 16, 0, 0, 0, ny), false},
		{"saturday", time.Date(2026, 9, 5, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2026, 9, 6, 12, 0, 0, 0, ny), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InTradingHours(tc.t))
		})
	}
}

func TestInTradingHoursConvertsZones(t *testing.T) {
	// 17:00 UTC in September is 13:00 in New York.
	assert.True(t, InTradingHours(time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)))
	// 02:00 UTC is overnight in New York.
	assert.False(t, InTradingHours(time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)))
}

func TestParseExpiryAndDTE(t *testing.T) {
	exp, err := ParseExpiry("20261120")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC), exp)

	_, err = ParseExpiry("2026-11-20")
	assert.Error(t, err)

	now := time.Date(2026, 11, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, DTE(exp, now))
	assert.Equal(t, 1, DTE(now.Add(2*time.Hour), now))
}
