// Package reactor implements C6: the nightly refresh across every Active
// automation's candidate accounts (spec.md §4.6), the activate/deactivate
// lifecycle transitions, the single-account/single-policy fast paths
// (onAccountCreated/onPolicyChanged), and the stuck-row reaper.
package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/filtereval"
	"github.com/isg-automation/scheduler/internal/service/planner"
	"github.com/isg-automation/scheduler/pkg/logger"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

// Deps are the collaborators the reactor needs across every entry point.
type Deps struct {
	Automations     domain.AutomationRepository
	Accounts        domain.AccountRepository
	Policies        domain.PolicyRepository
	Templates       domain.TemplateRepository
	ScheduledEmails domain.ScheduledEmailRepository
	ActivityLog     domain.ActivityLogRepository
	FilterDeps      filtereval.Deps
	TZConv          tzconv.Converter
	Logger          logger.Logger

	// MaxAccountsPerRefresh bounds one Refresh call's candidate page,
	// default 1000 (spec.md §5).
	MaxAccountsPerRefresh int
	// ReaperThreshold is how long a row may sit in Processing before the
	// reaper resets it to Pending, default 1h.
	ReaperThreshold time.Duration
	HorizonDays     int
	PlannerBatch    int
}

func (d Deps) pageSize() int {
	if d.MaxAccountsPerRefresh > 0 {
		return d.MaxAccountsPerRefresh
	}
	return 1000
}

func (d Deps) reaperThreshold() time.Duration {
	if d.ReaperThreshold > 0 {
		return d.ReaperThreshold
	}
	return time.Hour
}

func (d Deps) plannerDeps() planner.Deps {
	return planner.Deps{
		Accounts:        d.Accounts,
		Policies:        d.Policies,
		Templates:       d.Templates,
		ScheduledEmails: d.ScheduledEmails,
		FilterDeps:      d.FilterDeps,
		TZConv:          d.TZConv,
		Logger:          d.Logger,
		HorizonDays:     d.HorizonDays,
		BatchSize:       d.PlannerBatch,
	}
}

// Result aggregates one reactor invocation, mirroring the RPC response
// shape spec.md §6 defines.
type Result struct {
	Refreshed    int
	NewScheduled int
	Reaped       int
	HasMore      bool
	NextOffset   int
	Errors       []error
}

// Daily runs the reaper, then refreshes every Active automation through
// one MaxAccountsPerRefresh-sized page each, per §4.6's nightly entry
// point. A caller driving multiple pages per automation should instead
// call Refresh directly with the accountOffset the previous call
// returned in NextOffset.
func Daily(ctx context.Context, now time.Time, deps Deps) (*Result, error) {
	result := &Result{}

	reaped, err := ReapStuck(ctx, now, deps)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("reactor: reaping stuck rows: %w", err))
	}
	result.Reaped = reaped

	automations, err := deps.Automations.ListActive(ctx, 0, deps.pageSize())
	if err != nil {
		return result, fmt.Errorf("reactor: listing active automations: %w", err)
	}

	for _, automation := range automations {
		r, err := Refresh(ctx, automation, now, 0, deps)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("reactor: refreshing automation %s: %w", automation.ID, err))
			continue
		}
		result.Refreshed++
		result.NewScheduled += r.NewScheduled
		result.Errors = append(result.Errors, r.Errors...)
	}
	return result, nil
}

// Refresh plans one automation against one page of its owner's
// candidate accounts starting at accountOffset, per §4.6's chunked
// refresh contract. HasMore/NextOffset let the caller (the RPC handler)
// drive subsequent pages without the reactor holding state between
// calls.
func Refresh(ctx context.Context, automation *domain.Automation, now time.Time, accountOffset int, deps Deps) (*Result, error) {
	result := &Result{}
	if !automation.IsActive() {
		return result, nil
	}

	ownerID := automation.OwnerIDOrSystem()
	pageSize := deps.pageSize()
	accounts, err := deps.Accounts.ListCandidates(ctx, ownerID, accountOffset, pageSize)
	if err != nil {
		return result, fmt.Errorf("reactor: listing candidate accounts for owner %s: %w", ownerID, err)
	}

	planResult, err := planner.Plan(ctx, ownerID, automation, accounts, now, deps.plannerDeps())
	if planResult != nil {
		result.NewScheduled = planResult.NewScheduled
		result.Errors = planResult.Errors
	}
	if err != nil {
		result.Errors = append(result.Errors, err)
	}

	if len(accounts) == pageSize {
		result.HasMore = true
		result.NextOffset = accountOffset + pageSize
	}
	return result, nil
}

// Activate transitions an automation to Active and records the event.
// The caller is responsible for triggering the first Refresh — this
// keeps Activate itself a fast, single-row write the RPC handler can
// return from promptly.
func Activate(ctx context.Context, automationID string, deps Deps) error {
	automation, err := deps.Automations.GetByID(ctx, automationID)
	if err != nil {
		return fmt.Errorf("reactor: loading automation %s: %w", automationID, err)
	}
	if err := deps.Automations.UpdateStatus(ctx, automationID, domain.AutomationStatusActive); err != nil {
		return fmt.Errorf("reactor: activating automation %s: %w", automationID, err)
	}
	_ = deps.ActivityLog.RecordEvent(ctx, automation.OwnerIDOrSystem(), "", domain.ActivityAutomationActivated, automationID)
	return nil
}

// Deactivate pauses an automation and cancels every Pending row it still
// owns, per §4.6: "deactivating an automation cancels its not-yet-sent
// queue".
func Deactivate(ctx context.Context, automationID string, reason string, deps Deps) (int, error) {
	automation, err := deps.Automations.GetByID(ctx, automationID)
	if err != nil {
		return 0, fmt.Errorf("reactor: loading automation %s: %w", automationID, err)
	}
	if err := deps.Automations.UpdateStatus(ctx, automationID, domain.AutomationStatusPaused); err != nil {
		return 0, fmt.Errorf("reactor: deactivating automation %s: %w", automationID, err)
	}
	cancelled, err := deps.ScheduledEmails.CancelPendingForAutomation(ctx, automationID, reason)
	if err != nil {
		return 0, fmt.Errorf("reactor: cancelling pending rows for automation %s: %w", automationID, err)
	}
	_ = deps.ActivityLog.RecordEvent(ctx, automation.OwnerIDOrSystem(), "", domain.ActivityAutomationPaused, reason)
	return cancelled, nil
}

// OnAccountCreated re-plans every Active automation belonging to ownerID
// (plus system-wide automations) against the single newly-created
// account, the fast path §4.6 describes for "a new account qualifies
// immediately rather than waiting for the nightly refresh".
func OnAccountCreated(ctx context.Context, ownerID, accountID string, now time.Time, deps Deps) (*Result, error) {
	account, err := deps.Accounts.GetByID(ctx, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("reactor: loading account %s: %w", accountID, err)
	}
	return planSingleAccount(ctx, ownerID, account, now, deps)
}

// OnPolicyChanged re-plans every Active automation against the account a
// changed policy belongs to, since a policy effective/expiration date
// shift can newly qualify or disqualify date-triggered rows.
func OnPolicyChanged(ctx context.Context, ownerID, accountID, policyID string, now time.Time, deps Deps) (*Result, error) {
	account, err := deps.Accounts.GetByID(ctx, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("reactor: loading account %s: %w", accountID, err)
	}
	return planSingleAccount(ctx, ownerID, account, now, deps)
}

func planSingleAccount(ctx context.Context, ownerID string, account *domain.Account, now time.Time, deps Deps) (*Result, error) {
	result := &Result{}
	automations, err := deps.Automations.ListActive(ctx, 0, deps.pageSize())
	if err != nil {
		return result, fmt.Errorf("reactor: listing active automations: %w", err)
	}

	accounts := []*domain.Account{account}
	for _, automation := range automations {
		if automation.OwnerIDOrSystem() != "" && automation.OwnerIDOrSystem() != ownerID {
			continue
		}
		planResult, err := planner.Plan(ctx, ownerID, automation, accounts, now, deps.plannerDeps())
		if planResult != nil {
			result.NewScheduled += planResult.NewScheduled
			result.Errors = append(result.Errors, planResult.Errors...)
		}
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
		result.Refreshed++
	}
	return result, nil
}

// ReapStuck resets every row stuck in Processing past ReaperThreshold
// back to Pending, per SPEC_FULL §5: a crashed sender worker must not
// strand rows permanently.
func ReapStuck(ctx context.Context, now time.Time, deps Deps) (int, error) {
	stuck, err := deps.ScheduledEmails.ListStuckProcessing(ctx, deps.reaperThreshold(), deps.pageSize())
	if err != nil {
		return 0, fmt.Errorf("reactor: listing stuck rows: %w", err)
	}
	reset := 0
	for _, row := range stuck {
		if err := deps.ScheduledEmails.ResetToPending(ctx, row.ID); err != nil {
			continue
		}
		reset++
	}
	return reset, nil
}
