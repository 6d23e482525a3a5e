package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntityType identifies a workflow-governed record collection on the backend.
type EntityType string

const (
	EntityRelease       EntityType = "release"
	EntityMCN           EntityType = "mcn"
	EntityPayoutRequest EntityType = "payout_request"
	EntitySupportTicket EntityType = "support_ticket"
	EntityMerchDesign   EntityType = "merch_design"
)

// EntityTypes lists every entity type the console can manage.
var EntityTypes = []EntityType{
	EntityRelease,
	EntityMCN,
	EntityPayoutRequest,
	EntitySupportTicket,
	EntityMerchDesign,
}

func ParseEntityType(raw string) (EntityType, error) {
	normalized := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range EntityTypes {
		if t == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}

// Category is the sub-kind of an entity. It shares the entity's status
// vocabulary but selects a different remote endpoint family. It never
// changes after the backend creates the record.
type Category string

const (
	CategoryDefault  Category = "default"
	CategoryBasic    Category = "basic"
	CategoryAdvanced Category = "advanced"
	CategoryRequest  Category = "request"
	CategoryChannel  Category = "channel"
)

var entityCategories = map[EntityType][]Category{
	EntityRelease:       {CategoryBasic, CategoryAdvanced},
	EntityMCN:           {CategoryRequest, CategoryChannel},
	EntityPayoutRequest: {CategoryDefault},
	EntitySupportTicket: {CategoryDefault},
	EntityMerchDesign:   {CategoryDefault},
}

// Categories returns the categories valid for an entity type.
func Categories(entity EntityType) []Category {
	return entityCategories[entity]
}

// ParseCategory maps the backend's string tag onto the closed category set
// for the entity. An empty tag resolves to the entity's first category
// (basic for releases, request for MCN).
func ParseCategory(entity EntityType, raw string) (Category, error) {
	allowed, ok := entityCategories[entity]
	if !ok {
		return "", fmt.Errorf("unknown entity type %q", entity)
	}
	normalized := Category(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == "" {
		return allowed[0], nil
	}
	for _, c := range allowed {
		if c == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("category %q is not valid for %s", raw, entity)
}

// Status is one value from an entity's closed status vocabulary.
type Status string

// Release statuses.
const (
	StatusDraft         Status = "draft"
	StatusSubmitted     Status = "submitted"
	StatusUnderReview   Status = "under_review"
	StatusProcessing    Status = "processing"
	StatusPublished     Status = "published"
	StatusLive          Status = "live"
	StatusRejected      Status = "rejected"
	StatusTakeDown      Status = "take_down"
	StatusTakenDown     Status = "taken_down"
	StatusUpdateRequest Status = "update_request"

	// StatusLiveRequestOpen is a machine position, not a backend status:
	// a live release that already has an open update or takedown request.
	StatusLiveRequestOpen Status = "live_request_open"
)

// MCN statuses (shared by requests and channels).
const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusSuspended        Status = "suspended"
	StatusRemovalRequested Status = "removal_requested"
	StatusRemoved          Status = "removed"
)

// Payout request statuses.
const (
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

// Support ticket statuses.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Merch design statuses.
const (
	StatusInProduction Status = "in_production"
	StatusShipped      Status = "shipped"
)

var entityStatuses = map[EntityType][]Status{
	EntityRelease: {
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusProcessing, StatusPublished,
		StatusLive, StatusRejected, StatusTakeDown, StatusTakenDown, StatusUpdateRequest,
	},
	EntityMCN: {
		StatusPending, StatusUnderReview, StatusApproved, StatusRejected,
		StatusSuspended, StatusRemovalRequested, StatusRemoved,
	},
	EntityPayoutRequest: {
		StatusPending, StatusApproved, StatusProcessing, StatusPaid, StatusRejected, StatusFailed,
	},
	EntitySupportTicket: {
		StatusOpen, StatusInProgress, StatusResolved, StatusClosed,
	},
	EntityMerchDesign: {
		StatusSubmitted, StatusApproved, StatusRejected, StatusInProduction, StatusShipped,
	},
}

// Statuses returns the backend status vocabulary of an entity type.
func Statuses(entity EntityType) []Status {
	return entityStatuses[entity]
}

func ParseStatus(entity EntityType, raw string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range entityStatuses[entity] {
		if s == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("status %q is not valid for %s", raw, entity)
}

// ActionID names a status-gated operation that requests a transition.
type ActionID string

const (
	ActionApprove            ActionID = "approve"
	ActionReject             ActionID = "reject"
	ActionStartProcessing    ActionID = "start_processing"
	ActionPublish            ActionID = "publish"
	ActionGoLive             ActionID = "go_live"
	ActionRequestTakedown    ActionID = "request_takedown"
	ActionProcessTakedown    ActionID = "process_takedown"
	ActionApproveEditRequest ActionID = "approve_edit_request"
	ActionRejectEditRequest  ActionID = "reject_edit_request"

	ActionStartReview    ActionID = "start_review"
	ActionSuspend        ActionID = "suspend"
	ActionReinstate      ActionID = "reinstate"
	ActionRequestRemoval ActionID = "request_removal"
	ActionApproveRemoval ActionID = "approve_removal"
	ActionRejectRemoval  ActionID = "reject_removal"

	ActionMarkProcessing ActionID = "mark_processing"
	ActionMarkPaid       ActionID = "mark_paid"
	ActionMarkFailed     ActionID = "mark_failed"
	ActionRetryPayout    ActionID = "retry_payout"

	ActionStartProgress ActionID = "start_progress"
	ActionResolve       ActionID = "resolve"
	ActionReopen        ActionID = "reopen"
	ActionClose         ActionID = "close"

	ActionStartProduction ActionID = "start_production"
	ActionShip            ActionID = "ship"
)

// actionAliases maps legacy action names still sent by older console
// builds onto their canonical ids.
var actionAliases = map[string]ActionID{
	"bulk_takedown": ActionRequestTakedown,
}

func ParseActionID(raw string) ActionID {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := actionAliases[normalized]; ok {
		return alias
	}
	return ActionID(normalized)
}

// WorkflowEntity is the shape shared by every workflow-governed record.
// Record carries the backend's full JSON for display; the gateway never
// mutates it.
type WorkflowEntity struct {
	ID             string          `json:"id"`
	Type           EntityType      `json:"type"`
	Name           string          `json:"name"`
	Status         Status          `json:"status"`
	Category       Category        `json:"category"`
	RequestStatus  string          `json:"request_status,omitempty"`
	HasOpenRequest bool            `json:"has_open_request"`
	Record         json.RawMessage `json:"record,omitempty"`
}

// closedRequestStates are request statuses that no longer hold a release
// in the "live with open request" position.
var closedRequestStates = map[string]bool{
	"":          true,
	"none":      true,
	"approved":  true,
	"rejected":  true,
	"completed": true,
	"closed":    true,
}

// IsRequestOpen reports whether a release request status marks an
// outstanding update or takedown request.
func IsRequestOpen(requestStatus string) bool {
	return !closedRequestStates[strings.ToLower(strings.TrimSpace(requestStatus))]
}

// Position is the state the transition table is keyed on. It equals
// Status except for a live release with an open request, which gets its
// own explicit position instead of being inferred from field absence.
func (e WorkflowEntity) Position() Status {
	if e.Type == EntityRelease && e.Status == StatusLive && e.HasOpenRequest {
		return StatusLiveRequestOpen
	}
	return e.Status
}

// EntityRef is the minimal reference the console sends for an action.
type EntityRef struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name"`
	Status   Status   `json:"status" validate:"required"`
	Category Category `json:"category"`
	// OpenRequest mirrors WorkflowEntity.HasOpenRequest for live releases.
	OpenRequest bool `json:"open_request"`
}

// Entity expands a ref into a WorkflowEntity of the given type.
func (r EntityRef) Entity(entity EntityType) WorkflowEntity {
	return WorkflowEntity{
		ID:             r.ID,
		Type:           entity,
		Name:           r.Name,
		Status:         r.Status,
		Category:       r.Category,
		HasOpenRequest: r.OpenRequest,
	}
}

// ActionInput is the side-channel data an action may carry.
type ActionInput struct {
	Reason     string            `json:"reason"`
	AdminNotes string            `json:"admin_notes"`
	Payload    map[string]string `json:"payload"`
}

// ActionRequest is the body of a single-entity action call.
type ActionRequest struct {
	Status      string            `json:"status" validate:"required"`
	Category    string            `json:"category"`
	OpenRequest bool              `json:"open_request"`
	Reason      string            `json:"reason" validate:"max=2000"`
	AdminNotes  string            `json:"admin_notes" validate:"max=2000"`
	Payload     map[string]string `json:"payload"`
}

// ActionResponse reports the outcome of a single-entity action. On a
// rejected action Entity holds the refreshed backend state.
type ActionResponse struct {
	Action ActionID        `json:"action"`
	Entity *WorkflowEntity `json:"entity,omitempty"`
}
