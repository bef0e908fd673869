// Package timeutil turns wall-clock input into canonical UTC instants and
// holds the half-open interval rules used for conflict detection.
package timeutil

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"Gin_postgres_redis_tool_booking/apperr"
)

var (
	ErrInvalidTimeFormat = fmt.Errorf("%w: invalid time format", apperr.ErrValidation)
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", apperr.ErrValidation)
)

// Layouts carrying an explicit offset or a trailing Z.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05Z07:00",
}

// Layouts without zone information. The last one is the form used by the
// QR terminals and the calendar UI.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ToUTCInstant parses raw and returns it in UTC. Zone-less input is read
// in loc.
func ToUTCInstant(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimeFormat)
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Canonical(t), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Canonical(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
}

// Canonical converts t to UTC at microsecond precision, which is what both
// postgres and the sqlite test store keep.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Contains reports whether t lies in [start,end).
func Contains(start, end, t time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// EndOfDayDurationWindow computes the quick-reserve window: it starts at now
// and ends at 23:59 local time on the last day of a durationDays-long span
// (day one being today). In the last minute of a day the 23:59 mark has
// already passed, so a one-day window then runs to the next local midnight.
func EndOfDayDurationWindow(durationDays int, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if durationDays < 1 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: duration must be at least 1 day, got %d", ErrInvalidArgument, durationDays)
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+durationDays-1, 23, 59, 0, 0, loc)
	if !end.After(now) {
		end = time.Date(local.Year(), local.Month(), local.Day()+durationDays, 0, 0, 0, 0, loc)
	}
	return Canonical(now), Canonical(end), nil
}
