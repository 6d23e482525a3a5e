package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tunebridge/console/internal/models"
)

type ActionLogRepository interface {
	Create(ctx context.Context, log *models.ActionLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ActionLog, error)
	List(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error)
	GetStats(ctx context.Context, since time.Time) (*models.ActionLogStats, error)
	GetEntityHistory(ctx context.Context, entity models.EntityType, entityID string, limit int) ([]models.ActionLog, error)
	DeleteOlderThan(ctx context.Context, date time.Time) (int64, error)
	Distinct(ctx context.Context, column string) ([]string, error)
}

type actionLogRepository struct {
	db *gorm.DB
}

func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

func (r *actionLogRepository) Create(ctx context.Context, log *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *actionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ActionLog, error) {
	var log models.ActionLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// equals adds a where clause only when the value is set.
func equals(column, value string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

func logWindow(filter *models.ActionLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.StartDate != nil {
			db = db.Where("created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			db = db.Where("created_at <= ?", *filter.EndDate)
		}
		if filter.BulkRunID != nil {
			db = db.Where("bulk_run_id = ?", *filter.BulkRunID)
		}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			db = db.Where("entity_id ILIKE ? OR reason ILIKE ? OR error_msg ILIKE ?", pattern, pattern, pattern)
		}
		return db
	}
}

func (r *actionLogRepository) List(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActionLog{}).Scopes(
		equals("operator_id", filter.OperatorID),
		equals("entity", string(filter.Entity)),
		equals("entity_id", filter.EntityID),
		equals("action", string(filter.Action)),
		equals("status", filter.Status),
		logWindow(filter),
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ActionLog
	err := query.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

type statsBucket struct {
	Entity    string
	Action    string
	Status    string
	ErrorKind string
	InBulk    bool
	Count     int64
}

// GetStats aggregates everything logged since the given time in one grouped
// query and folds the buckets into the stats view.
func (r *actionLogRepository) GetStats(ctx context.Context, since time.Time) (*models.ActionLogStats, error) {
	var buckets []statsBucket
	err := r.db.WithContext(ctx).Model(&models.ActionLog{}).
		Select("entity, action, status, error_kind, bulk_run_id IS NOT NULL AS in_bulk, count(*) AS count").
		Where("created_at >= ?", since).
		Group("entity, action, status, error_kind, in_bulk").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}

	stats := &models.ActionLogStats{
		Since:           since,
		ActionsByEntity: make(map[string]int64),
		ActionsByType:   make(map[string]int64),
		FailuresByKind:  make(map[string]int64),
	}
	var succeeded int64
	for _, b := range buckets {
		stats.TotalActions += b.Count
		stats.ActionsByEntity[b.Entity] += b.Count
		stats.ActionsByType[b.Action] += b.Count
		if b.InBulk {
			stats.BulkActions += b.Count
		}
		if b.Status == models.ActionLogSuccess {
			succeeded += b.Count
		} else if b.ErrorKind != "" {
			stats.FailuresByKind[b.ErrorKind] += b.Count
		}
	}
	if stats.TotalActions > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalActions) * 100
	}
	return stats, nil
}

func (r *actionLogRepository) GetEntityHistory(ctx context.Context, entity models.EntityType, entityID string, limit int) ([]models.ActionLog, error) {
	var logs []models.ActionLog
	err := r.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *actionLogRepository) DeleteOlderThan(ctx context.Context, date time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", date).
		Delete(&models.ActionLog{})
	return result.RowsAffected, result.Error
}

// Distinct lists the values seen in one column. Callers pass a fixed column
// name, never user input.
func (r *actionLogRepository) Distinct(ctx context.Context, column string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).Model(&models.ActionLog{}).
		Distinct(column).
		Order(column).
		Pluck(column, &values).Error
	return values, err
}
