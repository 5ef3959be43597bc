package planner

import (
	"strconv"
	"strings"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
)

// triggerSpec is the per-group result of step A: one trigger field and a
// single daysBeforeTrigger integer.
type triggerSpec struct {
	Field             domain.RuleField
	DaysBeforeTrigger int
}

// deriveTriggerSpec folds a group's date-trigger rules into one
// triggerSpec, per §4.2 step A's per-operator rules. Rules on different
// fields within the same group are not expected by the UI that authors
// these filters; the first field encountered wins and conflicting
// bounds are combined with max(), consistent with how in_next_days and
// more_than_days_future both widen the same inner bound.
func deriveTriggerSpec(rules []domain.Rule) (triggerSpec, bool) {
	var field domain.RuleField
	haveField := false
	innerBound := 0
	haveInner := false
	outerBound := 0
	haveOuter := false
	lastDays := 0
	haveLastDays := false

	for _, r := range rules {
		if r.IsDegenerate() {
			continue
		}
		if !haveField {
			field = r.Field
			haveField = true
		}
		n, err := strconv.Atoi(strings.TrimSpace(r.Value))
		if err != nil {
			continue
		}
		switch r.Operator {
		case domain.OpInNextDays, domain.OpMoreThanDaysFuture:
			if !haveInner || n > innerBound {
				innerBound = n
			}
			haveInner = true
		case domain.OpLessThanDaysFuture:
			if !haveOuter || n > outerBound {
				outerBound = n
			}
			haveOuter = true
		case domain.OpInLastDays:
			if !haveLastDays || n > lastDays {
				lastDays = n
			}
			haveLastDays = true
		}
	}

	if !haveField {
		return triggerSpec{}, false
	}

	switch {
	case haveInner:
		return triggerSpec{Field: field, DaysBeforeTrigger: innerBound}, true
	case haveLastDays:
		return triggerSpec{Field: field, DaysBeforeTrigger: -lastDays}, true
	case haveOuter:
		// outer bound used only when no inner bound was set, for preview;
		// the planner still needs a concrete journey start, so treat it
		// the same as an inner bound of that width.
		return triggerSpec{Field: field, DaysBeforeTrigger: outerBound}, true
	default:
		return triggerSpec{}, false
	}
}

// triggerDates derives the set of trigger dates for one account under one
// triggerSpec (§4.2 step B), applying the group's sibling policyType/
// policyTerm rules as an AND filter over the account's Active policies.
func triggerDates(account *domain.Account, policies []*domain.Policy, spec triggerSpec, extraFilters []domain.Rule) []time.Time {
	switch spec.Field {
	case domain.FieldAccountCreated:
		return []time.Time{account.CreatedAt}

	case domain.FieldPolicyExpiration:
		return policyDates(policies, extraFilters, func(p *domain.Policy) time.Time { return p.ExpirationDate })

	case domain.FieldPolicyEffective:
		return policyDates(policies, extraFilters, func(p *domain.Policy) time.Time { return p.EffectiveDate })

	default:
		return nil
	}
}

func policyDates(policies []*domain.Policy, extraFilters []domain.Rule, pick func(*domain.Policy) time.Time) []time.Time {
	var dates []time.Time
	for _, p := range policies {
		if !p.IsActive() {
			continue
		}
		if !matchesPolicyFilters(p, extraFilters) {
			continue
		}
		dates = append(dates, pick(p))
	}
	return sortedUniqueDates(dates)
}

func matchesPolicyFilters(p *domain.Policy, rules []domain.Rule) bool {
	for _, r := range rules {
		if r.IsDegenerate() {
			continue
		}
		var actual string
		switch r.Field {
		case domain.FieldPolicyType, domain.FieldActivePolicyType:
			actual = strings.ToLower(p.LOB)
		case domain.FieldPolicyTerm:
			actual = strings.ToLower(p.TermLabel)
		default:
			continue
		}
		want := strings.ToLower(strings.TrimSpace(r.Value))
		switch r.Operator {
		case domain.OpIs, domain.OpEquals:
			if actual != want {
				return false
			}
		case domain.OpIsNot, domain.OpNotEquals:
			if actual == want {
				return false
			}
		case domain.OpIsAny:
			if !containsFold(r.Values(), actual) {
				return false
			}
		case domain.OpIsNotAny:
			if containsFold(r.Values(), actual) {
				return false
			}
		case domain.OpContains:
			if !strings.Contains(actual, want) {
				return false
			}
		}
	}
	return true
}

func containsFold(values []string, actual string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), actual) {
			return true
		}
	}
	return false
}
