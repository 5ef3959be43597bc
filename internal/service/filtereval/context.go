// Package filtereval compiles and evaluates the rule/filter DSL
// (internal/domain.Filter) against a batch of candidate accounts. The
// planner (C2), and the reactor (C6) through it, go through here rather
// than walking the DSL ad hoc; the verifier (C4) does not use it.
package filtereval

import (
	"context"
	"fmt"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/geocode"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Context is the pre-computed evaluation batch the evaluator runs
// against, built once per candidate set rather than per rule per account
// (spec.md §4.1 "compilation strategy").
type Context struct {
	now             time.Time
	policiesByAccount map[string][]*domain.Policy
	lastEmailSent     map[string]time.Time // accountID -> most recent engaged log; absent means never emailed
	geocodeByKey      map[string]geocode.LatLng

	geocoder *geocode.Client
	logger   logger.Logger
}

// Deps are the read surfaces Context.Build uses to assemble its maps.
type Deps struct {
	Policies   domain.PolicyRepository
	EmailLogs  domain.EmailLogRepository
	Geocoder   *geocode.Client // optional; nil disables within_radius (always false)
}

// Build assembles a Context for one batch of candidate accounts: the
// accountId -> policies[] map, the accountId -> lastEmailSentAt map
// (most recent Sent/Delivered/Opened/Clicked log), and the geocode map
// for every location key any account in the batch carries. now is
// injected so evaluation is deterministic and testable.
func Build(ctx context.Context, ownerID string, accounts []*domain.Account, now time.Time, deps Deps, log logger.Logger) (*Context, error) {
	ec := &Context{
		now:               now,
		policiesByAccount: make(map[string][]*domain.Policy, len(accounts)),
		geocodeByKey:      make(map[string]geocode.LatLng),
		geocoder:          deps.Geocoder,
		logger:            log,
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.ID)
		policies, err := deps.Policies.ListByAccount(ctx, ownerID, a.ID)
		if err != nil {
			return nil, fmt.Errorf("loading policies for account %s: %w", a.ID, err)
		}
		ec.policiesByAccount[a.ID] = policies
	}

	lastSent, err := deps.EmailLogs.LastEngagedAt(ctx, ownerID, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("loading last-engaged map: %w", err)
	}
	ec.lastEmailSent = lastSent

	if deps.Geocoder != nil {
		keys := make([]string, 0, len(accounts))
		for _, a := range accounts {
			if key := a.GeocodeKey(); key != "" {
				keys = append(keys, key)
			}
		}
		resolved, err := deps.Geocoder.ResolveBatch(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("resolving geocode batch: %w", err)
		}
		ec.geocodeByKey = resolved
	}

	return ec, nil
}
