// Package planner implements the trigger-date planner (spec.md §4.2): it
// takes an Active automation and a candidate batch of accounts and
// materializes every qualifying scheduled_emails row for the coming
// year, following the same "compile once, evaluate per account" posture
// internal/service/filtereval uses for the base filter.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/internal/service/filtereval"
	"github.com/isg-automation/scheduler/pkg/logger"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

// Deps are the read/write surfaces the planner needs.
type Deps struct {
	Accounts        domain.AccountRepository
	Policies        domain.PolicyRepository
	Templates       domain.TemplateRepository
	ScheduledEmails domain.ScheduledEmailRepository
	FilterDeps      filtereval.Deps
	TZConv          tzconv.Converter
	Logger          logger.Logger

	// HorizonDays bounds how far into the future a row's scheduled_for may
	// fall (spec.md §4.2 step D.4), default 365.
	HorizonDays int
	// BatchSize is the insert batch size (step F), default 100.
	BatchSize int
}

func (d Deps) horizonDays() int {
	if d.HorizonDays > 0 {
		return d.HorizonDays
	}
	return 365
}

func (d Deps) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return 100
}

// Result summarizes one Plan invocation.
type Result struct {
	NewScheduled int
	Errors       []error
}

// candidateRow is a fully-computed but not-yet-deduplicated scheduled
// row, carried alongside its dedup key.
type candidateRow struct {
	row *domain.ScheduledEmail
	key domain.DedupKey
}

// Plan runs steps A-F of the trigger-date planner for one automation
// against one batch of accounts (already scoped to ownerID by the
// caller). now is injected so runs are deterministic and testable.
func Plan(ctx context.Context, ownerID string, automation *domain.Automation, accounts []*domain.Account, now time.Time, deps Deps) (*Result, error) {
	result := &Result{}

	if !automation.IsActive() {
		return result, fmt.Errorf("planner: automation %s is not Active", automation.ID)
	}
	if len(accounts) == 0 {
		return result, nil
	}

	steps := domain.WalkSendEmailSteps(automation.Nodes)
	if len(steps) == 0 {
		return result, nil
	}
	resolved, err := resolveTemplates(ctx, ownerID, steps, deps.Templates)
	if err != nil {
		// spec.md §4.2: "templates without resolution fail the plan ...
		// do not partially schedule."
		return result, fmt.Errorf("planner: resolving templates for automation %s: %w", automation.ID, err)
	}

	evalCtx, err := filtereval.Build(ctx, ownerID, accounts, now, deps.FilterDeps, deps.Logger)
	if err != nil {
		return result, fmt.Errorf("planner: building filter context: %w", err)
	}

	base, dateRuleGroups := automation.Filter.Partition()
	pacing := domain.EntryCriteria(automation.Nodes)

	var candidates []candidateRow
	anyDateRules := false
	for _, rules := range dateRuleGroups {
		if len(rules) > 0 {
			anyDateRules = true
		}
	}

	if !anyDateRules {
		candidates, err = planImmediate(ctx, automation, accounts, resolved, now, evalCtx, base, deps)
	} else {
		candidates, err = planDateTriggered(ctx, ownerID, automation, accounts, resolved, now, evalCtx, base, dateRuleGroups, deps)
	}
	if err != nil {
		result.Errors = append(result.Errors, err)
	}

	candidates = applyPacing(candidates, pacing, now, deps.TZConv, automation)

	inserted, insertErrs := insertBatches(ctx, automation.ID, candidates, deps)
	result.NewScheduled += inserted
	result.Errors = append(result.Errors, insertErrs...)

	return result, nil
}

// resolveTemplates resolves every email step's templateId, either the
// node's literal template UUID or the owner's template matching
// templateKey; there is no fallback to a system template.
func resolveTemplates(ctx context.Context, ownerID string, steps []domain.EmailStep, templates domain.TemplateRepository) ([]domain.EmailStep, error) {
	out := make([]domain.EmailStep, len(steps))
	for i, step := range steps {
		out[i] = step
		if step.TemplateID != "" {
			continue
		}
		if step.TemplateKey == "" {
			return nil, fmt.Errorf("send_email node %s has neither template nor templateKey", step.NodeID)
		}
		tpl, err := templates.GetByDefaultKey(ctx, ownerID, step.TemplateKey)
		if err != nil {
			return nil, fmt.Errorf("resolving templateKey %q for node %s: %w", step.TemplateKey, step.NodeID, err)
		}
		out[i].TemplateID = tpl.ID
	}
	return out, nil
}

// planImmediate is the non-date-based variant: every account matching
// the base filter gets one journey anchored at today.
func planImmediate(ctx context.Context, automation *domain.Automation, accounts []*domain.Account, steps []domain.EmailStep, now time.Time, evalCtx *filtereval.Context, base domain.Filter, deps Deps) ([]candidateRow, error) {
	var out []candidateRow
	for _, account := range accounts {
		matched, _ := evalCtx.Match(base, account)
		if !matched || !account.Sendable() {
			continue
		}
		rootDate := now

		// §4.2: "if the first step resolves to a past time today, roll to
		// tomorrow" — only the root step is checked; later steps inherit
		// the same shift via their offset.
		if scheduledFor, err := convert(deps.TZConv, rootDate, automation); err == nil && scheduledFor.Before(now) {
			rootDate = rootDate.AddDate(0, 0, 1)
		}

		for _, step := range steps {
			sendDate := rootDate.AddDate(0, 0, int(step.DaysOffset))
			row, key, ok, err := buildRow(automation, account, step, sendDate, now, deps,
				domain.ImmediateQualificationValue, domain.TriggerFieldActivation, false)
			if err != nil {
				return out, err
			}
			if ok {
				out = append(out, candidateRow{row: row, key: key})
			}
		}
	}
	return out, nil
}

// planDateTriggered is the date-based variant (§4.2 steps A-D).
func planDateTriggered(ctx context.Context, ownerID string, automation *domain.Automation, accounts []*domain.Account, steps []domain.EmailStep, now time.Time, evalCtx *filtereval.Context, base domain.Filter, dateRuleGroups [][]domain.Rule, deps Deps) ([]candidateRow, error) {
	var out []candidateRow
	var firstErr error

	for _, account := range accounts {
		if !account.Sendable() {
			continue
		}
		_, matchedGroups := evalCtx.Match(base, account)
		if len(matchedGroups) == 0 {
			continue
		}

		policies, err := deps.Policies.ListByAccount(ctx, ownerID, account.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("planner: loading policies for account %s: %w", account.ID, err)
			}
			continue
		}

		for _, groupIdx := range matchedGroups {
			rules := dateRuleGroups[groupIdx]
			if len(rules) == 0 {
				continue
			}
			spec, ok := deriveTriggerSpec(rules)
			if !ok {
				continue
			}
			extraFilters := extraRules(base.Groups[groupIdx].Rules)

			for _, triggerDate := range triggerDates(account, policies, spec, extraFilters) {
				firstQualDate := triggerDate.AddDate(0, 0, -spec.DaysBeforeTrigger)
				qualificationValue := triggerDate.Format("2006-01-02")

				for _, step := range steps {
					sendDate := firstQualDate.AddDate(0, 0, int(step.DaysOffset))
					row, key, ok, err := buildRow(automation, account, step, sendDate, now, deps,
						qualificationValue, string(spec.Field), true)
					if err != nil {
						if firstErr == nil {
							firstErr = err
						}
						continue
					}
					if ok {
						out = append(out, candidateRow{row: row, key: key})
					}
				}
			}
		}
	}
	return out, firstErr
}

// buildRow materializes one scheduled_emails row for (account, sendDate,
// emailStep), applying the horizon/past-date drop (step D.4).
func buildRow(automation *domain.Automation, account *domain.Account, step domain.EmailStep, sendDate, now time.Time, deps Deps, qualificationValue, triggerField string, requiresVerification bool) (*domain.ScheduledEmail, domain.DedupKey, bool, error) {
	scheduledFor, err := convert(deps.TZConv, sendDate, automation)
	if err != nil {
		return nil, domain.DedupKey{}, false, fmt.Errorf("converting send time for automation %s: %w", automation.ID, err)
	}
	if scheduledFor.Before(now) || scheduledFor.After(now.AddDate(0, 0, deps.horizonDays())) {
		return nil, domain.DedupKey{}, false, nil
	}

	automationID := automation.ID
	row := &domain.ScheduledEmail{
		OwnerID:              account.OwnerID,
		AutomationID:         &automationID,
		AccountID:            account.ID,
		TemplateID:           step.TemplateID,
		ToEmail:              account.Email,
		ToName:               account.FullName(),
		ScheduledFor:         scheduledFor,
		Status:               domain.ScheduledEmailPending,
		RequiresVerification: requiresVerification,
		QualificationValue:   qualificationValue,
		TriggerField:         triggerField,
		NodeID:               step.NodeID,
		MaxAttempts:          3,
	}
	return row, row.Key(), true, nil
}

func convert(conv tzconv.Converter, date time.Time, automation *domain.Automation) (time.Time, error) {
	return conv.ToUTC(date, automation.SendTime, automation.Timezone)
}

// insertBatches implements step F: insert in batches of batchSize,
// continuing past a failed batch, and maintaining an in-run dedup set on
// top of what the store already reports as existing.
func insertBatches(ctx context.Context, automationID string, candidates []candidateRow, deps Deps) (int, []error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	keys := make([]domain.DedupKey, len(candidates))
	for i, c := range candidates {
		keys[i] = c.key
	}
	existing, err := deps.ScheduledEmails.ExistingKeys(ctx, automationID, keys)
	if err != nil {
		return 0, []error{fmt.Errorf("planner: checking existing keys: %w", err)}
	}

	seen := make(map[domain.DedupKey]bool, len(candidates))
	var toInsert []*domain.ScheduledEmail
	for _, c := range candidates {
		if existing[c.key] || seen[c.key] {
			continue
		}
		seen[c.key] = true
		toInsert = append(toInsert, c.row)
	}

	var errs []error
	inserted := 0
	batchSize := deps.batchSize()
	for start := 0; start < len(toInsert); start += batchSize {
		end := start + batchSize
		if end > len(toInsert) {
			end = len(toInsert)
		}
		batch := toInsert[start:end]
		rows, err := deps.ScheduledEmails.InsertBatch(ctx, batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("planner: inserting batch [%d:%d): %w", start, end, err))
			continue
		}
		inserted += len(rows)
	}
	return inserted, errs
}

// extraRules returns a group's policy_type/policy_term/active_policy_type
// rules, which §4.2 step B calls the date rule's "optional policyType and
// policyTerm filters" — modeled as sibling base rules in the same group
// rather than extra fields on Rule.
func extraRules(groupRules []domain.Rule) []domain.Rule {
	var out []domain.Rule
	for _, r := range groupRules {
		switch r.Field {
		case domain.FieldPolicyType, domain.FieldPolicyTerm, domain.FieldActivePolicyType:
			out = append(out, r)
		}
	}
	return out
}

// sortedUniqueDates returns d with duplicate calendar days collapsed, sorted.
func sortedUniqueDates(dates []time.Time) []time.Time {
	seen := make(map[string]time.Time, len(dates))
	for _, d := range dates {
		seen[d.Format("2006-01-02")] = d
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
