package filtereval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/geocode"
)

func acct(opts ...func(*domain.Account)) *domain.Account {
	a := &domain.Account{
		ID:                   "acct-1",
		Email:                "jane@example.com",
		EmailValidationState: domain.EmailValidationValid,
		CreatedAt:            time.Now().Add(-30 * 24 * time.Hour),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func ctxWith(now time.Time, policies map[string][]*domain.Policy, lastSent map[string]time.Time, geo map[string]geocode.LatLng) *Context {
	if policies == nil {
		policies = map[string][]*domain.Policy{}
	}
	if lastSent == nil {
		lastSent = map[string]time.Time{}
	}
	if geo == nil {
		geo = map[string]geocode.LatLng{}
	}
	return &Context{now: now, policiesByAccount: policies, lastEmailSent: lastSent, geocodeByKey: geo}
}

func ruleFilter(rules ...domain.Rule) domain.Filter {
	return domain.Filter{Groups: []domain.Group{{Rules: rules}}}
}

func TestDegenerateRuleMatchesEveryAccount(t *testing.T) {
	ec := ctxWith(time.Now(), nil, nil, nil)
	f := ruleFilter(domain.Rule{Field: domain.FieldCity, Operator: domain.OpContains, Value: ""})
	matched, _ := ec.Match(f, acct())
	require.True(t, matched, "a rule missing its value must be a no-op match, not a filter-everyone trap")
}

func TestAccountStatusDerivedFromOptOutAndValidation(t *testing.T) {
	ec := ctxWith(time.Now(), nil, nil, nil)

	optedOut := acct(func(a *domain.Account) { a.OptedOut = true })
	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldAccountStatus, Operator: domain.OpIs, Value: "opted_out"}), optedOut)
	require.True(t, matched)

	invalid := acct(func(a *domain.Account) { a.EmailValidationState = domain.EmailValidationInvalid })
	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldCustomerStatus, Operator: domain.OpIs, Value: "invalid"}), invalid)
	require.True(t, matched)
}

func TestPolicyTypeMatchesBySubstringExistentially(t *testing.T) {
	a := acct()
	policies := map[string][]*domain.Policy{
		a.ID: {{LOB: "Personal Auto", Status: domain.PolicyStatusActive}, {LOB: "Home", Status: domain.PolicyStatusExpired}},
	}
	ec := ctxWith(time.Now(), policies, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyType, Operator: domain.OpIs, Value: "auto"}), a)
	require.True(t, matched, "substring match on lob should find Personal Auto via \"auto\"")

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyType, Operator: domain.OpIsNot, Value: "umbrella"}), a)
	require.True(t, matched)
}

func TestActivePolicyTypeIgnoresInactivePolicies(t *testing.T) {
	a := acct()
	policies := map[string][]*domain.Policy{
		a.ID: {{LOB: "Auto", Status: domain.PolicyStatusExpired}},
	}
	ec := ctxWith(time.Now(), policies, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldActivePolicyType, Operator: domain.OpIs, Value: "Auto"}), a)
	require.False(t, matched, "active_policy_type must not match an expired policy even with the right lob")
}

func TestPolicyCountBetween(t *testing.T) {
	a := acct()
	policies := map[string][]*domain.Policy{
		a.ID: {{LOB: "Auto"}, {LOB: "Home"}, {LOB: "Umbrella"}},
	}
	ec := ctxWith(time.Now(), policies, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyCount, Operator: domain.OpBetween, Value: "2", Value2: "4"}), a)
	require.True(t, matched)

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyCount, Operator: domain.OpAtMost, Value: "1"}), a)
	require.False(t, matched)
}

func TestLastEmailSentNeverEmailedIsAsymmetric(t *testing.T) {
	a := acct()
	now := time.Now()
	ec := ctxWith(now, nil, nil, nil) // no entry in lastEmailSent: never emailed

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLastEmailSent, Operator: domain.OpBefore, Value: now.Format("2006-01-02")}), a)
	require.True(t, matched, "never-emailed must satisfy a before() predicate")

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLastEmailSent, Operator: domain.OpInLastDays, Value: "7"}), a)
	require.False(t, matched, "never-emailed must not satisfy a forward/recent predicate")

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLastEmailSent, Operator: domain.OpMoreThanDaysAgo, Value: "30"}), a)
	require.True(t, matched)
}

func TestLastEmailSentWithActualValue(t *testing.T) {
	a := acct()
	now := time.Now()
	sentAt := now.Add(-10 * 24 * time.Hour)
	ec := ctxWith(now, nil, map[string]time.Time{a.ID: sentAt}, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLastEmailSent, Operator: domain.OpInLastDays, Value: "14"}), a)
	require.True(t, matched)

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLastEmailSent, Operator: domain.OpInLastDays, Value: "5"}), a)
	require.False(t, matched)
}

func TestPolicyExpirationDateOperators(t *testing.T) {
	a := acct()
	now := time.Now()
	policies := map[string][]*domain.Policy{
		a.ID: {{ExpirationDate: now.Add(20 * 24 * time.Hour), Status: domain.PolicyStatusActive}},
	}
	ec := ctxWith(now, policies, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyExpiration, Operator: domain.OpInNextDays, Value: "30"}), a)
	require.True(t, matched)

	matched, _ = ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyExpiration, Operator: domain.OpInNextDays, Value: "10"}), a)
	require.False(t, matched)
}

func TestStateMatchIsUppercaseTrimmed(t *testing.T) {
	a := acct(func(a *domain.Account) { a.State = "ca" })
	ec := ctxWith(time.Now(), nil, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldState, Operator: domain.OpIsAny, Value: "CA, NY"}), a)
	require.True(t, matched)
}

func TestZipCodeContains(t *testing.T) {
	a := acct(func(a *domain.Account) { a.PostalCode = "94107" })
	ec := ctxWith(time.Now(), nil, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldZipCode, Operator: domain.OpStartsWith, Value: "941"}), a)
	require.True(t, matched)
}

func TestLocationWithinRadius(t *testing.T) {
	a := acct(func(a *domain.Account) { a.PostalCode = "94107"; a.State = "CA" })
	key := a.GeocodeKey()
	geo := map[string]geocode.LatLng{key: {Lat: 37.7749, Lng: -122.4194}} // San Francisco
	ec := ctxWith(time.Now(), nil, nil, geo)

	// Oakland, roughly 8 miles away.
	near := ruleFilter(domain.Rule{Field: domain.FieldLocation, Operator: domain.OpWithinRadius, Value: "37.8044,-122.2712", Radius: 15})
	matched, _ := ec.Match(near, a)
	require.True(t, matched)

	far := ruleFilter(domain.Rule{Field: domain.FieldLocation, Operator: domain.OpWithinRadius, Value: "40.7128,-74.0060", Radius: 50}) // NYC
	matched, _ = ec.Match(far, a)
	require.False(t, matched)
}

func TestLocationWithNoGeocodableAddressFailsPredicate(t *testing.T) {
	a := acct() // no city/state/zip at all
	ec := ctxWith(time.Now(), nil, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldLocation, Operator: domain.OpWithinRadius, Value: "37.7,-122.4", Radius: 10}), a)
	require.False(t, matched)
}

func TestPolicyTermIgnoresMonthsSuffix(t *testing.T) {
	a := acct()
	policies := map[string][]*domain.Policy{a.ID: {{TermLabel: "6 months"}}}
	ec := ctxWith(time.Now(), policies, nil, nil)

	matched, _ := ec.Match(ruleFilter(domain.Rule{Field: domain.FieldPolicyTerm, Operator: domain.OpIs, Value: "6"}), a)
	require.True(t, matched)
}

func TestGroupsOrAcrossMatchesAndReportsGroupIndex(t *testing.T) {
	a := acct(func(a *domain.Account) { a.State = "TX" })
	ec := ctxWith(time.Now(), nil, nil, nil)

	f := domain.Filter{Groups: []domain.Group{
		{Rules: []domain.Rule{{Field: domain.FieldState, Operator: domain.OpIs, Value: "CA"}}},
		{Rules: []domain.Rule{{Field: domain.FieldState, Operator: domain.OpIs, Value: "TX"}}},
	}}

	matched, groups := ec.Match(f, a)
	require.True(t, matched)
	require.Equal(t, []int{1}, groups)
}

func TestNotOptedOutShortCircuits(t *testing.T) {
	a := acct(func(a *domain.Account) { a.OptedOut = true })
	ec := ctxWith(time.Now(), nil, nil, nil)

	f := domain.Filter{NotOptedOut: true}
	matched, _ := ec.Match(f, a)
	require.False(t, matched)
}

func TestEmptyFilterMatchesAll(t *testing.T) {
	ec := ctxWith(time.Now(), nil, nil, nil)
	matched, _ := ec.Match(domain.Filter{}, acct())
	require.True(t, matched)
}
