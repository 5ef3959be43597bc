package domain

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// AutomationStatus is the lifecycle state of an Automation. Only
// AutomationStatusActive drives or is referenced by pending scheduled
// emails (spec.md §3).
type AutomationStatus string

const (
	AutomationStatusDraft    AutomationStatus = "Draft"
	AutomationStatusActive   AutomationStatus = "Active"
	AutomationStatusPaused   AutomationStatus = "Paused"
	AutomationStatusArchived AutomationStatus = "Archived"
)

// NodeType discriminates the WorkflowNode tagged union (§9 "Tagged
// variants for nodes").
type NodeType string

const (
	NodeEntryCriteria NodeType = "entry_criteria"
	NodeTrigger       NodeType = "trigger"
	NodeSendEmail     NodeType = "send_email"
	NodeDelay         NodeType = "delay"
	NodeCondition     NodeType = "condition"
)

// DelayUnit is the unit a delay node's Duration is expressed in.
type DelayUnit string

const (
	DelayUnitHours DelayUnit = "hours"
	DelayUnitDays  DelayUnit = "days"
	DelayUnitWeeks DelayUnit = "weeks"
)

// Days converts a delay expressed in Unit into a (possibly fractional)
// number of days, following §4.2 step C's conversion table (×1 for days,
// ×7 for weeks, ÷24 for hours).
func (u DelayUnit) Days(duration float64) float64 {
	switch u {
	case DelayUnitWeeks:
		return duration * 7
	case DelayUnitHours:
		return duration / 24
	default:
		return duration
	}
}

// Pacing is the entry_criteria node's pacing config.
type Pacing struct {
	Enabled        bool     `json:"enabled"`
	SpreadOverDays int      `json:"spreadOverDays,omitempty"`
	AllowedDays    []string `json:"allowedDays,omitempty"` // lowercase day names: "mon".."sun"
}

// Restricted reports whether AllowedDays excludes at least one day of the
// week, which §4.2 step E treats as a standing constraint even when
// Enabled is false.
func (p Pacing) Restricted() bool {
	return len(p.AllowedDays) > 0 && len(p.AllowedDays) < 7
}

// WorkflowNode is one node of the automation's ordered node list. Only
// the fields relevant to NodeType are populated; this mirrors how the
// teacher's broadcast settings types use one struct per JSON document
// with sparse fields rather than Go's interface-based tagged unions,
// since the wire shape (one object, a `type` discriminator, optional
// sibling keys) comes directly from spec.md §3.
type WorkflowNode struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	// entry_criteria
	Pacing Pacing `json:"pacing,omitempty"`

	// trigger
	Time     string `json:"time,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// send_email
	Template    string `json:"template,omitempty"`    // literal template UUID
	TemplateKey string `json:"templateKey,omitempty"` // resolved per-owner default_key

	// delay
	Duration float64   `json:"duration,omitempty"`
	Unit     DelayUnit `json:"unit,omitempty"`

	// condition
	Branches *Branches `json:"branches,omitempty"`
}

// Branches holds a condition node's children. Only Yes is walked by the
// planner (§4.2 step C, §9): "the core only pre-schedules the yes path".
type Branches struct {
	Yes []WorkflowNode `json:"yes,omitempty"`
	No  []WorkflowNode `json:"no,omitempty"`
}

// NodeList is the ordered node slice, stored as JSONB.
type NodeList []WorkflowNode

func (n NodeList) Value() (driver.Value, error) {
	return valueJSONColumn([]WorkflowNode(n))
}

func (n *NodeList) Scan(value interface{}) error {
	var nodes []WorkflowNode
	if err := scanJSONColumn(value, &nodes); err != nil {
		return err
	}
	*n = nodes
	return nil
}

// EmailStep is one emitted (nodeId, templateId, daysOffset) tuple from
// walking the node list, per §4.2 step C.
type EmailStep struct {
	NodeID     string
	TemplateID string // "" if unresolved by literal template; resolve via TemplateKey
	TemplateKey string
	DaysOffset float64
}

// WalkSendEmailSteps traverses nodes in order, skipping entry_criteria
// and trigger, accumulating delay and emitting a step for every
// send_email node, following condition nodes into Branches.Yes only.
func WalkSendEmailSteps(nodes []WorkflowNode) []EmailStep {
	var steps []EmailStep
	var walk func(nodes []WorkflowNode, accumulator float64)
	walk = func(nodes []WorkflowNode, accumulator float64) {
		for _, node := range nodes {
			switch node.Type {
			case NodeEntryCriteria, NodeTrigger:
				continue
			case NodeDelay:
				accumulator += node.Unit.Days(node.Duration)
			case NodeSendEmail:
				steps = append(steps, EmailStep{
					NodeID:      node.ID,
					TemplateID:  node.Template,
					TemplateKey: node.TemplateKey,
					DaysOffset:  accumulator,
				})
			case NodeCondition:
				if node.Branches != nil {
					walk(node.Branches.Yes, accumulator)
				}
			}
		}
	}
	walk(nodes, 0)
	return steps
}

// EntryCriteria returns the entry_criteria node's Pacing config, or the
// zero value (pacing disabled, unrestricted) if no such node exists.
func EntryCriteria(nodes []WorkflowNode) Pacing {
	for _, node := range nodes {
		if node.Type == NodeEntryCriteria {
			return node.Pacing
		}
	}
	return Pacing{}
}

// TriggerNode returns the automation's trigger node, if present.
func TriggerNode(nodes []WorkflowNode) (WorkflowNode, bool) {
	for _, node := range nodes {
		if node.Type == NodeTrigger {
			return node, true
		}
	}
	return WorkflowNode{}, false
}

// Automation is a user-defined workflow: filter + nodes + schedule +
// pacing (GLOSSARY).
type Automation struct {
	ID         string           `json:"id" valid:"required,uuid"`
	OwnerID    *string          `json:"owner_id,omitempty"` // nullable: nil means "system default"
	Name       string           `json:"name" valid:"required"`
	Status     AutomationStatus `json:"status" valid:"required"`
	SendTime   string           `json:"send_time"` // local wall time, "HH:MM"
	Timezone   string           `json:"timezone"`  // IANA zone name
	Filter     Filter           `json:"filter"`
	Nodes      NodeList         `json:"nodes"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Validate enforces struct-tag rules plus the send-time format.
func (a *Automation) Validate() error {
	if _, err := govalidator.ValidateStruct(a); err != nil {
		return fmt.Errorf("invalid automation: %w", err)
	}
	if a.SendTime == "" {
		return &ErrValidation{Field: "send_time", Message: "required"}
	}
	if _, _, err := parseHHMM(a.SendTime); err != nil {
		return &ErrValidation{Field: "send_time", Message: "must be HH:MM"}
	}
	return nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// IsActive reports whether the automation is in the one status that
// drives scheduling.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}

// OwnerIDOrSystem returns the owner id, or "" for the system default
// automation (OwnerID == nil).
func (a *Automation) OwnerIDOrSystem() string {
	if a.OwnerID == nil {
		return ""
	}
	return *a.OwnerID
}

type dbAutomation struct {
	ID        string
	OwnerID   *string
	Name      string
	Status    string
	SendTime  string
	Timezone  string
	Filter    []byte
	Nodes     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScanAutomation scans one row into an Automation.
func ScanAutomation(scanner interface{ Scan(dest ...interface{}) error }) (*Automation, error) {
	var d dbAutomation
	if err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.Status, &d.SendTime, &d.Timezone,
		&d.Filter, &d.Nodes, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a := &Automation{
		ID: d.ID, OwnerID: d.OwnerID, Name: d.Name, Status: AutomationStatus(d.Status),
		SendTime: d.SendTime, Timezone: d.Timezone, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if len(d.Filter) > 0 {
		if err := json.Unmarshal(d.Filter, &a.Filter); err != nil {
			return nil, fmt.Errorf("decode filter: %w", err)
		}
	}
	if len(d.Nodes) > 0 {
		if err := json.Unmarshal(d.Nodes, &a.Nodes); err != nil {
			return nil, fmt.Errorf("decode nodes: %w", err)
		}
	}
	return a, nil
}

// AutomationRepository is the read/write surface over the automations
// table used by C2 (planner) and C6 (reactor).
type AutomationRepository interface {
	GetByID(ctx context.Context, id string) (*Automation, error)
	ListActive(ctx context.Context, offset, limit int) ([]*Automation, error)
	CountActive(ctx context.Context) (int, error)
	Create(ctx context.Context, a *Automation) error
	Update(ctx context.Context, a *Automation) error
	UpdateStatus(ctx context.Context, id string, status AutomationStatus) error
}

// ErrAutomationNotFound is returned by AutomationRepository.GetByID.
type ErrAutomationNotFound struct{ ID string }

func (e *ErrAutomationNotFound) Error() string { return fmt.Sprintf("automation %q not found", e.ID) }
