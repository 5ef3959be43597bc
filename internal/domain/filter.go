package domain

import (
	"database/sql/driver"
	"strings"
)

// RuleField enumerates the account/policy attributes the filter DSL can
// test, per spec.md §4.1's field/operator table.
type RuleField string

const (
	FieldAccountStatus   RuleField = "account_status"
	FieldCustomerStatus  RuleField = "customer_status"
	FieldPolicyType      RuleField = "policy_type"
	FieldActivePolicyType RuleField = "active_policy_type"
	FieldPolicyStatus    RuleField = "policy_status"
	FieldPolicyCount     RuleField = "policy_count"
	FieldPolicyExpiration RuleField = "policy_expiration"
	FieldPolicyEffective RuleField = "policy_effective"
	FieldAccountCreated  RuleField = "account_created"
	FieldLastEmailSent   RuleField = "last_email_sent"
	FieldState           RuleField = "state"
	FieldCity            RuleField = "city"
	FieldZipCode         RuleField = "zip_code"
	FieldEmailDomain     RuleField = "email_domain"
	FieldLocation        RuleField = "location"
	FieldPolicyTerm      RuleField = "policy_term"
)

// dateTriggerFields are the fields whose relative-date rules the planner
// (C2) partitions out of the base filter (§4.2 Step A).
var dateTriggerFields = map[RuleField]bool{
	FieldPolicyExpiration: true,
	FieldPolicyEffective:  true,
	FieldAccountCreated:   true,
}

// IsDateTriggerField reports whether field is one of the three fields the
// trigger-date planner treats specially.
func IsDateTriggerField(field RuleField) bool { return dateTriggerFields[field] }

// RuleOperator enumerates every operator recognized across all fields.
// Not every operator is valid for every field; Rule.Validate does not
// cross-check this (evaluator compilation is the source of truth,
// following the filter evaluator's own no-op-on-mismatch posture).
type RuleOperator string

const (
	OpIs            RuleOperator = "is"
	OpIsNot         RuleOperator = "is_not"
	OpIsAny         RuleOperator = "is_any"
	OpIsNotAny      RuleOperator = "is_not_any"
	OpEquals        RuleOperator = "equals"
	OpNotEquals     RuleOperator = "not_equals"
	OpGreaterThan   RuleOperator = "greater_than"
	OpLessThan      RuleOperator = "less_than"
	OpAtLeast       RuleOperator = "at_least"
	OpAtMost        RuleOperator = "at_most"
	OpBetween       RuleOperator = "between"
	OpContains      RuleOperator = "contains"
	OpNotContains   RuleOperator = "not_contains"
	OpStartsWith    RuleOperator = "starts_with"
	OpEndsWith      RuleOperator = "ends_with"
	OpIsEmpty       RuleOperator = "is_empty"
	OpIsNotEmpty    RuleOperator = "is_not_empty"
	OpWithinRadius  RuleOperator = "within_radius"
	OpInNextDays    RuleOperator = "in_next_days"
	OpInLastDays    RuleOperator = "in_last_days"
	OpMoreThanDaysFuture  RuleOperator = "more_than_days_future"
	OpLessThanDaysFuture  RuleOperator = "less_than_than_days_future"
	OpMoreThanDaysAgo     RuleOperator = "more_than_days_ago"
	OpLessThanDaysAgo     RuleOperator = "less_than_days_ago"
	OpBefore        RuleOperator = "before"
	OpAfter         RuleOperator = "after"
)

// needsNoValue is the set of operators that are valid with an empty Value
// (§4.1 "Degenerate operators"): everything else with a missing value is
// a no-op match-true rule, but is_empty/is_not_empty never need a value.
var needsNoValue = map[RuleOperator]bool{
	OpIsEmpty:    true,
	OpIsNotEmpty: true,
}

// Rule is one leaf predicate in the filter DSL.
type Rule struct {
	Field    RuleField    `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    string       `json:"value,omitempty"`
	Value2   string       `json:"value2,omitempty"`
	Radius   float64      `json:"radius,omitempty"` // miles, only for within_radius
}

// IsDegenerate reports whether this rule is missing a value it needs to
// evaluate meaningfully and should therefore be treated as a no-op match
// (spec.md §4.1: "partially configured UI-built rules must not silently
// filter everyone").
func (r Rule) IsDegenerate() bool {
	if needsNoValue[r.Operator] {
		return false
	}
	return strings.TrimSpace(r.Value) == ""
}

// Values splits a comma-separated value list for is_any/is_not_any rules.
func (r Rule) Values() []string {
	parts := strings.Split(r.Value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Group is an AND of Rules.
type Group struct {
	Rules []Rule `json:"rules"`
}

// Filter is the top-level DSL document: groups OR'd together, plus the
// two standing modifiers spec.md §4.1 describes.
type Filter struct {
	Groups      []Group `json:"groups"`
	NotOptedOut bool    `json:"notOptedOut"`
	Search      string  `json:"search,omitempty"`
}

// legacyFilter supports the legacy `{ rules: [...] }` shape, which §3
// defines as shorthand for "a single group of that rule list".
type legacyFilter struct {
	Rules       []Rule `json:"rules"`
	NotOptedOut bool   `json:"notOptedOut"`
	Search      string `json:"search"`
}

// Value implements driver.Valuer for the automations.filter JSONB
// column, following the teacher's AudienceSettings/ScheduleSettings
// pattern (internal/domain/broadcast.go).
func (f Filter) Value() (driver.Value, error) {
	return valueJSONColumn(f)
}

// Scan implements sql.Scanner, accepting either the canonical {groups:...}
// shape or the legacy {rules:...} shape transparently.
func (f *Filter) Scan(value interface{}) error {
	if value == nil {
		*f = Filter{}
		return nil
	}
	var canonical struct {
		Groups      []Group `json:"groups"`
		NotOptedOut bool    `json:"notOptedOut"`
		Search      string  `json:"search"`
	}
	if err := scanJSONColumn(value, &canonical); err != nil {
		return err
	}
	if len(canonical.Groups) == 0 {
		var legacy legacyFilter
		if err := scanJSONColumn(value, &legacy); err == nil && len(legacy.Rules) > 0 {
			f.Groups = []Group{{Rules: legacy.Rules}}
			f.NotOptedOut = legacy.NotOptedOut
			f.Search = legacy.Search
			return nil
		}
	}
	f.Groups = canonical.Groups
	f.NotOptedOut = canonical.NotOptedOut
	f.Search = canonical.Search
	return nil
}

// Normalize rewrites a legacy {rules:...} payload into the canonical
// {groups:...} shape in place. Called after Scan for callers that
// unmarshal the raw JSON themselves (e.g. validation endpoints) rather
// than going through the Scanner.
func (f *Filter) Normalize(rawRules []Rule) {
	if len(f.Groups) == 0 && len(rawRules) > 0 {
		f.Groups = []Group{{Rules: rawRules}}
	}
}

// IsEmpty reports whether the filter has no groups, which §4.1 defines
// as match-all (subject to NotOptedOut/Search).
func (f Filter) IsEmpty() bool {
	return len(f.Groups) == 0
}

// Partition splits the filter into base rules (everything else) and the
// date-trigger rules on the three trigger fields, per §4.2 Step A. Each
// returned group preserves its position so the planner can still OR
// across groups when deriving a per-group daysBeforeTrigger.
func (f Filter) Partition() (base Filter, dateRuleGroups [][]Rule) {
	base = Filter{NotOptedOut: f.NotOptedOut, Search: f.Search}
	dateRuleGroups = make([][]Rule, len(f.Groups))
	for i, g := range f.Groups {
		var baseRules []Rule
		var dateRules []Rule
		for _, r := range g.Rules {
			if IsDateTriggerField(r.Field) {
				dateRules = append(dateRules, r)
			} else {
				baseRules = append(baseRules, r)
			}
		}
		base.Groups = append(base.Groups, Group{Rules: baseRules})
		dateRuleGroups[i] = dateRules
	}
	return base, dateRuleGroups
}
