// Package tzconv computes the UTC instant for a local calendar date, a
// wall-clock "HH:MM" string, and an IANA timezone name — the date math
// the trigger-date planner (C2) uses for every send time; the verifier
// does not use it.
//
// Two implementations exist behind the same interface, per spec.md §4.7's
// documented open question: Legacy reproduces the simplified US-centric
// DST table the source system actually ships, and Real delegates to the
// Go tzdata via time.LoadLocation the way the teacher's
// ScheduleSettings.ParseScheduledDateTime does. Config.TimezoneMode picks
// one at wiring time; both stay reachable so the DST correctness property
// in spec.md §8 holds regardless of which is configured.
package tzconv

import "time"

// Converter computes the UTC instant for a local date/time/zone triple.
type Converter interface {
	ToUTC(date time.Time, wallClock string, tz string) (time.Time, error)
}

// ForMode selects a Converter by config string: "legacy" gives Legacy,
// anything else gives Real.
func ForMode(mode string) Converter {
	if mode == "legacy" {
		return Legacy{}
	}
	return Real{}
}
