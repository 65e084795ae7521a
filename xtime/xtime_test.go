package xtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appinsights-go/agent/internal/perr"
)

func TestFormatInstant(t *testing.T) {
	tm := time.Date(2024, time.January, 2, 3, 4, 5, 123456000, time.UTC)
	got := FormatInstant(tm.UnixNano())
	assert.Equal(t, "2024-01-02T03:04:05.123456+00:00", got)
}

func TestFormatInstantEpoch(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:00.000000+00:00", FormatInstant(0))
}

func TestFormatDuration(t *testing.T) {
	for _, tt := range []struct {
		nanos int64
		want  string
	}{
		{0, "00.00:00:00.000000"},
		{1000, "00.00:00:00.000001"},
		{time.Second.Nanoseconds(), "00.00:00:01.000000"},
		{(25 * time.Hour).Nanoseconds(), "01.01:00:00.000000"},
	} {
		got, err := FormatDuration(tt.nanos)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatDurationNegativeFails(t *testing.T) {
	_, err := FormatDuration(-1)
	require.Error(t, err)
	assert.True(t, perr.Is(err, perr.InvalidInput))
}

func TestParseDurationRoundTrips(t *testing.T) {
	for _, nanos := range []int64{
		0,
		1000,
		time.Second.Nanoseconds(),
		(25 * time.Hour).Nanoseconds(),
		(3*24*time.Hour + 4*time.Hour + 5*time.Minute + 6*time.Second + 789123*time.Microsecond).Nanoseconds(),
	} {
		s, err := FormatDuration(nanos)
		require.NoError(t, err)
		back, err := ParseDuration(s)
		require.NoError(t, err)
		assert.Equal(t, nanos, back, "round trip for %d", nanos)
	}
}

func TestParseDurationMalformed(t *testing.T) {
	_, err := ParseDuration("not-a-duration")
	assert.Error(t, err)
}
