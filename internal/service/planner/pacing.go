package planner

import (
	"sort"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

var weekdayByName = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func allowedWeekdays(names []string) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool, len(names))
	for _, n := range names {
		if wd, ok := weekdayByName[n]; ok {
			out[wd] = true
		}
	}
	return out
}

// applyPacing implements §4.2 step E over one Plan invocation's
// candidate rows, grouped into journeys by (account, qualification value):
// every row of one journey is one "bucket" whose calendar day pacing
// assigns, with its sibling steps kept at their original offset from that
// day.
func applyPacing(candidates []candidateRow, pacing domain.Pacing, today time.Time, conv tzconv.Converter, automation *domain.Automation) []candidateRow {
	if len(candidates) == 0 {
		return candidates
	}

	allowed := allowedWeekdays(pacing.AllowedDays)

	if pacing.Enabled && pacing.SpreadOverDays > 0 && len(allowed) > 0 {
		return distributeRoundRobin(candidates, pacing, today, allowed, conv, automation)
	}
	if pacing.Restricted() {
		return rollOffDisallowedDays(candidates, allowed, conv, automation)
	}
	return candidates
}

// distributeRoundRobin buckets rows by journey (account plus qualification
// value), assigning each bucket one of the next spreadOverDays valid
// calendar days round-robin, preserving each row's original offset from
// the UTC calendar day of its bucket's first row.
func distributeRoundRobin(candidates []candidateRow, pacing domain.Pacing, today time.Time, allowed map[time.Weekday]bool, conv tzconv.Converter, automation *domain.Automation) []candidateRow {
	validDays := nextValidDays(today, pacing.SpreadOverDays, allowed)
	if len(validDays) == 0 {
		return candidates
	}

	// Group rows by journey so every step of one journey moves together,
	// then assign buckets to validDays round-robin in key order.
	buckets := map[string][]int{}
	var order []string
	for i, c := range candidates {
		key := c.row.AccountID + "|" + c.row.QualificationValue
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}
	sort.Strings(order)

	out := make([]candidateRow, len(candidates))
	copy(out, candidates)

	for bucketIdx, key := range order {
		target := validDays[bucketIdx%len(validDays)]
		targetDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
		first := out[buckets[key][0]].row.ScheduledFor
		origDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
		for _, i := range buckets[key] {
			out[i].row.ScheduledFor = targetDay.Add(out[i].row.ScheduledFor.Sub(origDay))
		}
	}
	return out
}

// rollOffDisallowedDays implements step E's second clause: pacing not
// fully enabled, but allowedDays still restricts which days a row may
// land on.
func rollOffDisallowedDays(candidates []candidateRow, allowed map[time.Weekday]bool, conv tzconv.Converter, automation *domain.Automation) []candidateRow {
	for _, c := range candidates {
		wd := c.row.ScheduledFor.Weekday()
		if allowed[wd] {
			continue
		}
		for i := 1; i <= 7; i++ {
			candidate := c.row.ScheduledFor.AddDate(0, 0, i)
			if allowed[candidate.Weekday()] {
				c.row.ScheduledFor = candidate
				break
			}
		}
	}
	return candidates
}

// nextValidDays enumerates the next n calendar days starting today whose
// weekday is in allowed.
func nextValidDays(today time.Time, n int, allowed map[time.Weekday]bool) []time.Time {
	var out []time.Time
	for i := 0; len(out) < n && i < n*7+7; i++ {
		d := today.AddDate(0, 0, i)
		if allowed[d.Weekday()] {
			out = append(out, d)
		}
	}
	return out
}
