package workflow

import (
	"github.com/tunebridge/console/internal/models"
)

var reasonRequired = Requirement{RequiresReason: true}

// ReleaseDefinition is the release lifecycle shared by basic and advanced
// releases. Only the endpoint families differ.
func ReleaseDefinition() Definition {
	return Definition{
		Entity: models.EntityRelease,
		Transitions: []Transition{
			{From: models.StatusSubmitted, Action: models.ActionApprove, To: models.StatusUnderReview},
			{From: models.StatusUnderReview, Action: models.ActionStartProcessing, To: models.StatusProcessing},
			{From: models.StatusUnderReview, Action: models.ActionReject, To: models.StatusRejected},
			{From: models.StatusProcessing, Action: models.ActionPublish, To: models.StatusPublished},
			{From: models.StatusProcessing, Action: models.ActionReject, To: models.StatusRejected},
			{From: models.StatusPublished, Action: models.ActionGoLive, To: models.StatusLive},
			{From: models.StatusLive, Action: models.ActionRequestTakedown, To: models.StatusTakeDown},
			{From: models.StatusTakeDown, Action: models.ActionProcessTakedown, To: models.StatusTakenDown},
			{From: models.StatusUpdateRequest, Action: models.ActionApproveEditRequest, To: models.StatusDraft},
			{From: models.StatusUpdateRequest, Action: models.ActionRejectEditRequest, To: models.StatusUpdateRequest},
		},
		Requirements: map[models.ActionID]Requirement{
			models.ActionReject:            reasonRequired,
			models.ActionRequestTakedown:   reasonRequired,
			models.ActionRejectEditRequest: reasonRequired,
		},
		Families: map[models.Category]string{
			models.CategoryBasic:    "releases/basic",
			models.CategoryAdvanced: "releases/advanced",
		},
		ActionPaths: map[models.Category]map[models.ActionID]string{
			models.CategoryBasic: {
				models.ActionRequestTakedown:    "takedown",
				models.ActionApproveEditRequest: "update-request/approve",
				models.ActionRejectEditRequest:  "update-request/reject",
			},
			models.CategoryAdvanced: {
				models.ActionRequestTakedown:    "takedown-request",
				models.ActionApproveEditRequest: "edit-request/approve",
				models.ActionRejectEditRequest:  "edit-request/reject",
			},
		},
		Positions: []models.Status{models.StatusLiveRequestOpen},
	}
}

// MCNDefinition covers both onboarding requests and managed channels.
// Requests move through review; channels move through suspension and
// removal.
func MCNDefinition() Definition {
	request := []models.Category{models.CategoryRequest}
	channel := []models.Category{models.CategoryChannel}
	return Definition{
		Entity: models.EntityMCN,
		Transitions: []Transition{
			{From: models.StatusPending, Action: models.ActionStartReview, To: models.StatusUnderReview, Categories: request},
			{From: models.StatusPending, Action: models.ActionReject, To: models.StatusRejected, Categories: request},
			{From: models.StatusUnderReview, Action: models.ActionApprove, To: models.StatusApproved, Categories: request},
			{From: models.StatusUnderReview, Action: models.ActionReject, To: models.StatusRejected, Categories: request},
			{From: models.StatusApproved, Action: models.ActionSuspend, To: models.StatusSuspended, Categories: channel},
			{From: models.StatusApproved, Action: models.ActionRequestRemoval, To: models.StatusRemovalRequested, Categories: channel},
			{From: models.StatusSuspended, Action: models.ActionReinstate, To: models.StatusApproved, Categories: channel},
			{From: models.StatusRemovalRequested, Action: models.ActionApproveRemoval, To: models.StatusRemoved, Categories: channel},
			{From: models.StatusRemovalRequested, Action: models.ActionRejectRemoval, To: models.StatusApproved, Categories: channel},
		},
		Requirements: map[models.ActionID]Requirement{
			models.ActionReject:         reasonRequired,
			models.ActionSuspend:        reasonRequired,
			models.ActionRequestRemoval: reasonRequired,
			models.ActionRejectRemoval:  reasonRequired,
		},
		Families: map[models.Category]string{
			models.CategoryRequest: "mcn/requests",
			models.CategoryChannel: "mcn/channels",
		},
	}
}

func PayoutDefinition() Definition {
	return Definition{
		Entity: models.EntityPayoutRequest,
		Transitions: []Transition{
			{From: models.StatusPending, Action: models.ActionApprove, To: models.StatusApproved},
			{From: models.StatusPending, Action: models.ActionReject, To: models.StatusRejected},
			{From: models.StatusApproved, Action: models.ActionMarkProcessing, To: models.StatusProcessing},
			{From: models.StatusProcessing, Action: models.ActionMarkPaid, To: models.StatusPaid},
			{From: models.StatusProcessing, Action: models.ActionMarkFailed, To: models.StatusFailed},
			{From: models.StatusFailed, Action: models.ActionRetryPayout, To: models.StatusProcessing},
		},
		Requirements: map[models.ActionID]Requirement{
			models.ActionReject:     reasonRequired,
			models.ActionMarkFailed: reasonRequired,
			models.ActionMarkPaid: {
				Payload: []PayloadField{
					{Name: "transaction_reference", Label: "Transaction reference", Required: true},
					{Name: "processed_by", Label: "Processed by", Required: true, FromOperator: true},
				},
			},
		},
		Families: map[models.Category]string{
			models.CategoryDefault: "payouts",
		},
		ActionPaths: map[models.Category]map[models.ActionID]string{
			models.CategoryDefault: {
				models.ActionRetryPayout: "retry",
			},
		},
	}
}

func SupportTicketDefinition() Definition {
	return Definition{
		Entity: models.EntitySupportTicket,
		Transitions: []Transition{
			{From: models.StatusOpen, Action: models.ActionStartProgress, To: models.StatusInProgress},
			{From: models.StatusOpen, Action: models.ActionClose, To: models.StatusClosed},
			{From: models.StatusInProgress, Action: models.ActionResolve, To: models.StatusResolved},
			{From: models.StatusInProgress, Action: models.ActionClose, To: models.StatusClosed},
			{From: models.StatusResolved, Action: models.ActionReopen, To: models.StatusOpen},
			{From: models.StatusResolved, Action: models.ActionClose, To: models.StatusClosed},
		},
		Requirements: map[models.ActionID]Requirement{
			models.ActionReopen: reasonRequired,
			models.ActionClose:  reasonRequired,
		},
		Families: map[models.Category]string{
			models.CategoryDefault: "support/tickets",
		},
	}
}

func MerchDesignDefinition() Definition {
	return Definition{
		Entity: models.EntityMerchDesign,
		Transitions: []Transition{
			{From: models.StatusSubmitted, Action: models.ActionApprove, To: models.StatusApproved},
			{From: models.StatusSubmitted, Action: models.ActionReject, To: models.StatusRejected},
			{From: models.StatusApproved, Action: models.ActionStartProduction, To: models.StatusInProduction},
			{From: models.StatusInProduction, Action: models.ActionShip, To: models.StatusShipped},
		},
		Requirements: map[models.ActionID]Requirement{
			models.ActionReject: reasonRequired,
			models.ActionShip: {
				Payload: []PayloadField{
					{Name: "tracking_number", Label: "Tracking number", Required: true},
					{Name: "carrier", Label: "Carrier"},
				},
			},
		},
		Families: map[models.Category]string{
			models.CategoryDefault: "merch/designs",
		},
	}
}

// Definitions returns the tables for every entity type the console manages.
func Definitions() []Definition {
	return []Definition{
		ReleaseDefinition(),
		MCNDefinition(),
		PayoutDefinition(),
		SupportTicketDefinition(),
		MerchDesignDefinition(),
	}
}
