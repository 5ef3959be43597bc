package filtereval

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/geocode"
)

// Match reports whether account a satisfies filter f against this
// Context's pre-computed batch, and which group indices matched — the
// latter purely for preview/debugging breakdowns (§4.1).
func (ec *Context) Match(f domain.Filter, a *domain.Account) (bool, []int) {
	if f.NotOptedOut && a.OptedOut {
		return false, nil
	}
	if f.Search != "" && !matchesSearch(a, f.Search) {
		return false, nil
	}
	if f.IsEmpty() {
		return true, nil
	}

	var matchedGroups []int
	for i, g := range f.Groups {
		if ec.matchGroup(g, a) {
			matchedGroups = append(matchedGroups, i)
		}
	}
	return len(matchedGroups) > 0, matchedGroups
}

func (ec *Context) matchGroup(g domain.Group, a *domain.Account) bool {
	for _, r := range g.Rules {
		if !ec.matchRule(r, a) {
			return false
		}
	}
	return true
}

// matchRule dispatches one leaf predicate. Degenerate rules (missing a
// required value) always match, per §4.1 "Degenerate operators".
func (ec *Context) matchRule(r domain.Rule, a *domain.Account) bool {
	if r.IsDegenerate() {
		return true
	}

	switch r.Field {
	case domain.FieldAccountStatus, domain.FieldCustomerStatus:
		return matchSetOp(r.Operator, a.StatusLabel(), r, lowerTrim)

	case domain.FieldPolicyType:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			return matchSubstringOp(r.Operator, strings.ToLower(p.LOB), r)
		})

	case domain.FieldActivePolicyType:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			if !p.IsActive() {
				return false
			}
			return matchSetOp(r.Operator, p.LOB, r, strings.TrimSpace)
		})

	case domain.FieldPolicyStatus:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			return matchSetOp(r.Operator, string(p.Status), r, lowerTrim)
		})

	case domain.FieldPolicyCount:
		return matchNumericOp(r.Operator, float64(len(ec.policiesByAccount[a.ID])), r)

	case domain.FieldPolicyExpiration:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			return matchDateOp(r.Operator, true, p.ExpirationDate, ec.now, r)
		})

	case domain.FieldPolicyEffective:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			return matchDateOp(r.Operator, true, p.EffectiveDate, ec.now, r)
		})

	case domain.FieldAccountCreated:
		return matchDateOp(r.Operator, true, a.CreatedAt, ec.now, r)

	case domain.FieldLastEmailSent:
		t, ok := ec.lastEmailSent[a.ID]
		return matchDateOp(r.Operator, ok, t, ec.now, r)

	case domain.FieldState:
		return matchSetOp(r.Operator, a.State, r, upperTrim)

	case domain.FieldCity:
		return matchStringOp(r.Operator, a.City, r)

	case domain.FieldZipCode:
		return matchStringOp(r.Operator, a.PostalCode, r)

	case domain.FieldEmailDomain:
		return matchStringOp(r.Operator, emailDomain(a.Email), r)

	case domain.FieldLocation:
		return ec.matchLocation(r, a)

	case domain.FieldPolicyTerm:
		return ec.anyPolicy(a, func(p *domain.Policy) bool {
			return matchSubstringOp(r.Operator, normalizeTerm(p.TermLabel), r)
		})
	}

	return false
}

func (ec *Context) anyPolicy(a *domain.Account, pred func(*domain.Policy) bool) bool {
	for _, p := range ec.policiesByAccount[a.ID] {
		if pred(p) {
			return true
		}
	}
	return false
}

func (ec *Context) matchLocation(r domain.Rule, a *domain.Account) bool {
	lat, lng, err := parseLatLng(r.Value)
	if err != nil {
		return true
	}
	key := a.GeocodeKey()
	if key == "" {
		return false
	}
	point, ok := ec.geocodeByKey[key]
	if !ok {
		return false
	}
	return haversineMiles(lat, lng, point.Lat, point.Lng) <= r.Radius
}

func matchesSearch(a *domain.Account, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	haystack := strings.ToLower(a.FirstName + " " + a.LastName + " " + a.Email + " " + a.CompanyName)
	return strings.Contains(haystack, needle)
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func upperTrim(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// matchSetOp implements the is/is_not/is_any/is_not_any shape shared by
// account_status, active_policy_type, policy_status, and state.
func matchSetOp(op domain.RuleOperator, actual string, r domain.Rule, normalize func(string) string) bool {
	actualN := normalize(actual)
	switch op {
	case domain.OpIs:
		return actualN == normalize(r.Value)
	case domain.OpIsNot:
		return actualN != normalize(r.Value)
	case domain.OpIsAny:
		for _, v := range r.Values() {
			if actualN == normalize(v) {
				return true
			}
		}
		return false
	case domain.OpIsNotAny:
		for _, v := range r.Values() {
			if actualN == normalize(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// matchSubstringOp implements the same is/is_not/is_any/is_not_any shape
// but with substring containment instead of equality, for policy_type and
// policy_term (§4.1: "matched by substring on policy.lob lowercased").
func matchSubstringOp(op domain.RuleOperator, actualLower string, r domain.Rule) bool {
	contains := func(v string) bool {
		return strings.Contains(actualLower, strings.ToLower(strings.TrimSpace(v)))
	}
	switch op {
	case domain.OpIs:
		return contains(r.Value)
	case domain.OpIsNot:
		return !contains(r.Value)
	case domain.OpIsAny:
		for _, v := range r.Values() {
			if contains(v) {
				return true
			}
		}
		return false
	case domain.OpIsNotAny:
		for _, v := range r.Values() {
			if contains(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// matchStringOp implements the contains/not_contains/equals/not_equals/
// starts_with/ends_with/is_empty/is_not_empty shape for city/zip_code/
// email_domain.
func matchStringOp(op domain.RuleOperator, actual string, r domain.Rule) bool {
	actualLower := strings.ToLower(strings.TrimSpace(actual))
	valueLower := strings.ToLower(strings.TrimSpace(r.Value))
	switch op {
	case domain.OpContains:
		return strings.Contains(actualLower, valueLower)
	case domain.OpNotContains:
		return !strings.Contains(actualLower, valueLower)
	case domain.OpEquals:
		return actualLower == valueLower
	case domain.OpNotEquals:
		return actualLower != valueLower
	case domain.OpStartsWith:
		return strings.HasPrefix(actualLower, valueLower)
	case domain.OpEndsWith:
		return strings.HasSuffix(actualLower, valueLower)
	case domain.OpIsEmpty:
		return strings.TrimSpace(actual) == ""
	case domain.OpIsNotEmpty:
		return strings.TrimSpace(actual) != ""
	default:
		return false
	}
}

// matchNumericOp implements policy_count's comparisons.
func matchNumericOp(op domain.RuleOperator, actual float64, r domain.Rule) bool {
	val, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
	if err != nil {
		return true
	}
	switch op {
	case domain.OpEquals:
		return actual == val
	case domain.OpNotEquals:
		return actual != val
	case domain.OpGreaterThan:
		return actual > val
	case domain.OpLessThan:
		return actual < val
	case domain.OpAtLeast:
		return actual >= val
	case domain.OpAtMost:
		return actual <= val
	case domain.OpBetween:
		val2, err2 := strconv.ParseFloat(strings.TrimSpace(r.Value2), 64)
		if err2 != nil {
			return true
		}
		lo, hi := val, val2
		if lo > hi {
			lo, hi = hi, lo
		}
		return actual >= lo && actual <= hi
	default:
		return false
	}
}

// matchDateOp implements the relative/absolute date operators shared by
// policy_expiration, policy_effective, account_created, and
// last_email_sent. hasActual is false only for last_email_sent on an
// account that has never been emailed, which §4.1 defines as "further in
// the past than any date": it matches before/more_than_days_ago and fails
// in_last_days and every forward-looking predicate.
func matchDateOp(op domain.RuleOperator, hasActual bool, actual, now time.Time, r domain.Rule) bool {
	if !hasActual {
		switch op {
		case domain.OpBefore, domain.OpMoreThanDaysAgo:
			return true
		default:
			return false
		}
	}

	switch op {
	case domain.OpInNextDays:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		d := daysBetween(now, actual)
		return d >= 0 && d <= float64(n)
	case domain.OpInLastDays:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		d := daysBetween(actual, now)
		return d >= 0 && d <= float64(n)
	case domain.OpMoreThanDaysFuture:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		return daysBetween(now, actual) > float64(n)
	case domain.OpLessThanDaysFuture:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		d := daysBetween(now, actual)
		return d >= 0 && d < float64(n)
	case domain.OpMoreThanDaysAgo:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		return daysBetween(actual, now) > float64(n)
	case domain.OpLessThanDaysAgo:
		n, err := parseIntValue(r.Value)
		if err != nil {
			return true
		}
		d := daysBetween(actual, now)
		return d >= 0 && d < float64(n)
	case domain.OpBefore:
		t, err := parseDateValue(r.Value)
		if err != nil {
			return true
		}
		return actual.Before(t)
	case domain.OpAfter:
		t, err := parseDateValue(r.Value)
		if err != nil {
			return true
		}
		return actual.After(t)
	case domain.OpBetween:
		t1, err1 := parseDateValue(r.Value)
		t2, err2 := parseDateValue(r.Value2)
		if err1 != nil || err2 != nil {
			return true
		}
		if t1.After(t2) {
			t1, t2 = t2, t1
		}
		return !actual.Before(t1) && !actual.After(t2)
	default:
		return false
	}
}

// daysBetween returns the signed number of calendar days from 'from' to
// 'to', positive when 'to' is later.
func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func parseIntValue(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}

// parseDateValue accepts the plain ISO date shape the planner's
// qualification_value uses, falling back to full RFC3339 for values that
// carry a time component.
func parseDateValue(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseLatLng(raw string) (lat, lng float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, strconv.ErrSyntax
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func emailDomain(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[at+1:]
	}
	return ""
}

// normalizeTerm strips a trailing "month"/"months" suffix so "6 months"
// and "6-month" compare equal (§4.1 policy_term).
func normalizeTerm(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "months")
	s = strings.TrimSuffix(s, "month")
	return strings.TrimSpace(strings.TrimSuffix(s, "-"))
}

// haversineMiles computes great-circle distance in miles, per §4.1.
func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const toRad = math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return geocode.EarthRadiusMiles * c
}
