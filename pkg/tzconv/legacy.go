package tzconv

import (
	"fmt"
	"time"
)

// baseOffsetHours is the standard-time (non-DST) hours-behind-UTC for the
// handful of US zones spec.md §4.7 names directly. Anything else defaults
// to 0 (treated as UTC), since the legacy table is documented as a
// US-centric simplification, not a general-purpose tz database.
var baseOffsetHours = map[string]int{
	"America/New_York":    5,
	"America/Chicago":     6,
	"America/Denver":      7,
	"America/Los_Angeles": 8,
	"America/Anchorage":   9,
	"America/Phoenix":     7,
	"Pacific/Honolulu":    10,
	"UTC":                 0,
}

// dstExempt never observes US daylight saving, per §4.7.
var dstExempt = map[string]bool{
	"America/Phoenix":  true,
	"Pacific/Honolulu": true,
	"UTC":              true,
}

// Legacy reproduces the simplified US DST table from spec.md §4.7: the
// offset is base_offset(tz) minus 1 when the local date falls between the
// second Sunday of March and the first Sunday of November, except for the
// exempt zones.
type Legacy struct{}

// ToUTC computes the UTC instant for the given local date/wallClock/tz
// using the simplified table. date's own time-of-day is ignored; only its
// Y-M-D carries meaning.
func (Legacy) ToUTC(date time.Time, wallClock string, tz string) (time.Time, error) {
	hour, minute, err := parseWallClock(wallClock)
	if err != nil {
		return time.Time{}, err
	}

	base, ok := baseOffsetHours[tz]
	if !ok {
		base = 0
	}
	offset := base
	if !dstExempt[tz] && inUSDST(date) {
		offset--
	}

	local := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
	return local.Add(time.Duration(offset) * time.Hour), nil
}

// inUSDST reports whether d's calendar date falls within the US daylight
// saving window for d's year: the second Sunday of March through the day
// before the first Sunday of November.
func inUSDST(d time.Time) bool {
	year := d.Year()
	start := nthSundayOfMonth(year, time.March, 2)
	end := nthSundayOfMonth(year, time.November, 1)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && day.Before(end)
}

// nthSundayOfMonth returns the nth Sunday (1-indexed) of month in year, at
// midnight UTC.
func nthSundayOfMonth(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7
	firstSunday := first.AddDate(0, 0, offset)
	return firstSunday.AddDate(0, 0, 7*(n-1))
}

func parseWallClock(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing wall clock %q: %w", raw, err)
	}
	return t.Hour(), t.Minute(), nil
}
