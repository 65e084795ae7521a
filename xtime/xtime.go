// Package xtime renders wall-clock instants and durations to the wire
// formats required by the envelope schema.
package xtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/appinsights-go/agent/internal/perr"
)

const component = "xtime"

// FormatInstant renders epochNanos as ISO-8601 UTC with microsecond
// precision and a trailing "+00:00" offset, e.g.
// "2024-01-02T03:04:05.123456+00:00".
func FormatInstant(epochNanos int64) string {
	sec := epochNanos / 1e9
	nsec := epochNanos % 1e9
	if nsec < 0 {
		sec--
		nsec += 1e9
	}
	y, mo, d, h, mi, s := civilFromUnix(sec)
	micros := nsec / 1000
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%06d+00:00", y, mo, d, h, mi, s, micros)
}

// FormatDuration renders a non-negative duration in nanoseconds as
// "D.HH:MM:SS.mmmmmm" with at-least-two-digit days and six-digit
// microseconds, both zero-padded.
func FormatDuration(nanos int64) (string, error) {
	if nanos < 0 {
		return "", perr.New(component, perr.InvalidInput, fmt.Errorf("negative duration: %d", nanos))
	}
	micros := nanos / 1000
	totalSeconds := micros / 1_000_000
	remMicros := micros % 1_000_000

	days := totalSeconds / 86400
	rem := totalSeconds % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	return fmt.Sprintf("%02d.%02d:%02d:%02d.%06d", days, hours, minutes, seconds, remMicros), nil
}

// ParseDuration is the inverse of FormatDuration, recovering the original
// nanosecond count to microsecond precision:
// ParseDuration(FormatDuration(d)) == d.
func ParseDuration(s string) (int64, error) {
	dotDays := strings.IndexByte(s, '.')
	if dotDays < 0 {
		return 0, perr.New(component, perr.InvalidInput, fmt.Errorf("malformed duration %q", s))
	}
	days, err := strconv.ParseInt(s[:dotDays], 10, 64)
	if err != nil {
		return 0, perr.New(component, perr.InvalidInput, err)
	}
	rest := s[dotDays+1:]

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return 0, perr.New(component, perr.InvalidInput, fmt.Errorf("malformed duration %q", s))
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, perr.New(component, perr.InvalidInput, err)
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, perr.New(component, perr.InvalidInput, err)
	}
	secDot := strings.IndexByte(parts[2], '.')
	if secDot < 0 {
		return 0, perr.New(component, perr.InvalidInput, fmt.Errorf("malformed duration %q", s))
	}
	seconds, err := strconv.ParseInt(parts[2][:secDot], 10, 64)
	if err != nil {
		return 0, perr.New(component, perr.InvalidInput, err)
	}
	micros, err := strconv.ParseInt(parts[2][secDot+1:], 10, 64)
	if err != nil {
		return 0, perr.New(component, perr.InvalidInput, err)
	}

	totalSeconds := days*86400 + hours*3600 + minutes*60 + seconds
	return (totalSeconds*1_000_000 + micros) * 1000, nil
}

// civilFromUnix converts a Unix second count to a UTC civil date/time,
// using the same proleptic-Gregorian algorithm as Howard Hinnant's
// "chrono-Compatible Low-Level Date Algorithms" (also used by Go's own
// time package internals) rather than looping through days.
func civilFromUnix(sec int64) (year, month, day, hour, min, s int) {
	daySec := sec % 86400
	if daySec < 0 {
		daySec += 86400
	}
	days := (sec - daySec) / 86400

	hour = int(daySec / 3600)
	min = int((daySec % 3600) / 60)
	s = int(daySec % 60)

	z := days + 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d), hour, min, s
}
