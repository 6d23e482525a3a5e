package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BulkRunState string

const (
	BulkRunRunning   BulkRunState = "running"
	BulkRunCompleted BulkRunState = "completed"
)

type BulkItemOutcome string

const (
	BulkItemSucceeded BulkItemOutcome = "succeeded"
	BulkItemFailed    BulkItemOutcome = "failed"
)

// BulkRun is the audit record of one bulk action invocation.
type BulkRun struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	EntityType  EntityType    `gorm:"size:30;index;not null" json:"entity_type"`
	Action      ActionID      `gorm:"size:50;index;not null" json:"action"`
	FromStatus  Status        `gorm:"size:30;not null" json:"from_status"`
	Category    Category      `gorm:"size:20;not null" json:"category"`
	Reason      string        `gorm:"type:text" json:"reason,omitempty"`
	State       BulkRunState  `gorm:"size:20;index;default:'running'" json:"state"`
	Total       int           `gorm:"not null" json:"total"`
	Succeeded   int           `gorm:"default:0" json:"succeeded"`
	Failed      int           `gorm:"default:0" json:"failed"`
	OperatorID  string        `gorm:"size:64;index" json:"operator_id"`
	Items       []BulkRunItem `gorm:"foreignKey:RunID" json:"items,omitempty"`
	StartedAt   time.Time     `gorm:"index" json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (r *BulkRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// BulkRunItem records the outcome of one entity inside a bulk run.
type BulkRunItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	RunID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"run_id"`
	Position     int             `gorm:"not null" json:"position"`
	EntityID     string          `gorm:"size:64;not null" json:"entity_id"`
	EntityName   string          `gorm:"size:255" json:"entity_name"`
	Outcome      BulkItemOutcome `gorm:"size:20;not null" json:"outcome"`
	ErrorKind    string          `gorm:"size:30" json:"error_kind,omitempty"`
	ErrorMessage string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (i *BulkRunItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// BulkRunRequest starts a bulk run over a homogeneous selection.
type BulkRunRequest struct {
	EntityType string            `json:"entity_type" validate:"required"`
	Action     string            `json:"action" validate:"required"`
	Reason     string            `json:"reason" validate:"max=2000"`
	AdminNotes string            `json:"admin_notes" validate:"max=2000"`
	Payload    map[string]string `json:"payload"`
	Items      []EntityRef       `json:"items" validate:"required,min=1,dive"`
}

// BulkRunFilter holds filter parameters for the run history listing.
type BulkRunFilter struct {
	EntityType EntityType
	OperatorID string
	State      BulkRunState
	Page       int
	Limit      int
}

// BulkProgress is the live "i of N" view of a running bulk run.
type BulkProgress struct {
	RunID     uuid.UUID    `json:"run_id"`
	State     BulkRunState `json:"state"`
	Processed int          `json:"processed"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Current   string       `json:"current,omitempty"`
}

type BulkFailureResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type BulkRunResponse struct {
	ID          uuid.UUID             `json:"id"`
	EntityType  EntityType            `json:"entity_type"`
	Action      ActionID              `json:"action"`
	FromStatus  Status                `json:"from_status"`
	Category    Category              `json:"category"`
	State       BulkRunState          `json:"state"`
	Total       int                   `json:"total"`
	Succeeded   []string              `json:"succeeded"`
	Failed      []BulkFailureResponse `json:"failed"`
	OperatorID  string                `json:"operator_id"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// ToBulkRunResponse renders a run with its items split into the succeeded
// and failed partitions, both in original selection order.
func ToBulkRunResponse(r *BulkRun) BulkRunResponse {
	resp := BulkRunResponse{
		ID:          r.ID,
		EntityType:  r.EntityType,
		Action:      r.Action,
		FromStatus:  r.FromStatus,
		Category:    r.Category,
		State:       r.State,
		Total:       r.Total,
		Succeeded:   []string{},
		Failed:      []BulkFailureResponse{},
		OperatorID:  r.OperatorID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}

	items := make([]BulkRunItem, len(r.Items))
	copy(items, r.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})

	for _, item := range items {
		if item.Outcome == BulkItemSucceeded {
			resp.Succeeded = append(resp.Succeeded, item.EntityID)
			continue
		}
		resp.Failed = append(resp.Failed, BulkFailureResponse{
			ID:      item.EntityID,
			Name:    item.EntityName,
			Kind:    item.ErrorKind,
			Message: item.ErrorMessage,
		})
	}

	return resp
}
