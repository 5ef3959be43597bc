package filtereval

import "github.com/isg-automation/scheduler/internal/domain"

// MatchResult pairs a matched account with the group indices that
// matched it, for callers that want the full candidate set rather than a
// one-at-a-time Match call.
type MatchResult struct {
	Account       *domain.Account
	MatchedGroups []int
}

// MatchBatch filters accounts against f using this Context, preserving
// input order. The planner does not call it; it matches accounts one at
// a time with Match.
func (ec *Context) MatchBatch(f domain.Filter, accounts []*domain.Account) []MatchResult {
	out := make([]MatchResult, 0, len(accounts))
	for _, a := range accounts {
		if matched, groups := ec.Match(f, a); matched {
			out = append(out, MatchResult{Account: a, MatchedGroups: groups})
		}
	}
	return out
}
