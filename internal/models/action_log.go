package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionLog records one workflow action the gateway dispatched to the
// backend, whether single or part of a bulk run.
type ActionLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	OperatorID string     `gorm:"size:64;index;not null" json:"operator_id"`
	Entity     EntityType `gorm:"size:30;index;not null" json:"entity"`
	Category   Category   `gorm:"size:20" json:"category"`
	EntityID   string     `gorm:"size:64;index" json:"entity_id"`
	Action     ActionID   `gorm:"size:50;index;not null" json:"action"`
	FromStatus Status     `gorm:"size:30" json:"from_status"`
	ToStatus   Status     `gorm:"size:30" json:"to_status,omitempty"` // as reported by the backend
	Reason     string     `gorm:"type:text" json:"reason,omitempty"`
	BulkRunID  *uuid.UUID `gorm:"type:uuid;index" json:"bulk_run_id,omitempty"`
	IPAddress  string     `gorm:"size:45" json:"ip_address"`
	UserAgent  string     `gorm:"size:500" json:"user_agent"`
	Status     string     `gorm:"size:20;default:'success'" json:"status"`
	ErrorKind  string     `gorm:"size:30" json:"error_kind,omitempty"`
	ErrorMsg   string     `gorm:"type:text" json:"error_msg,omitempty"`
	Duration   int64      `json:"duration"` // milliseconds
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

const (
	ActionLogSuccess = "success"
	ActionLogFailed  = "failed"
)

func (a *ActionLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ActionLogFilter holds filter parameters for querying action logs
type ActionLogFilter struct {
	OperatorID string     `json:"operator_id"`
	Entity     EntityType `json:"entity"`
	EntityID   string     `json:"entity_id"`
	Action     ActionID   `json:"action"`
	Status     string     `json:"status"`
	BulkRunID  *uuid.UUID `json:"bulk_run_id"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Search     string     `json:"search"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}

// ActionLogStats summarises the audit log over a window. FailuresByKind
// separates backend rejections from network failures.
type ActionLogStats struct {
	Since           time.Time        `json:"since"`
	TotalActions    int64            `json:"total_actions"`
	BulkActions     int64            `json:"bulk_actions"`
	SuccessRate     float64          `json:"success_rate"`
	ActionsByEntity map[string]int64 `json:"actions_by_entity"`
	ActionsByType   map[string]int64 `json:"actions_by_type"`
	FailuresByKind  map[string]int64 `json:"failures_by_kind"`
}
